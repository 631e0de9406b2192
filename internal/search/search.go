package search

import (
	"encoding/json"
	"errors"
	"regexp"
)

// ErrUnavailable means no search backend is reachable.
var ErrUnavailable = errors.New("search unavailable")

// Result is a single gift hit returned to the caller.
type Result struct {
	ID      string   `json:"id"`
	GiftID  string   `json:"giftId"`
	Version string   `json:"version"`
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Status  string   `json:"status,omitempty"`
	Price   *float64 `json:"price,omitempty"`
}

// Query describes a search request. Version restricts hits to one published
// version; callers pass the live one.
type Query struct {
	Text    string
	Version string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Version string   `json:"version"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push gift records into a search index.
type Indexer interface {
	IndexGifts(records []GiftRecord) error
}

// GiftRecord is the data indexed for one gift of one published version.
type GiftRecord struct {
	ID               string   `json:"id"`
	GiftID           string   `json:"giftId"`
	Version          string   `json:"version"`
	Title            string   `json:"title"`
	ShortDescription string   `json:"shortDescription"`
	Status           string   `json:"status"`
	Price            *float64 `json:"price,omitempty"`
}

type giftsDoc struct {
	Gifts []struct {
		GiftID           string   `json:"giftId"`
		Title            string   `json:"title"`
		ShortDescription string   `json:"shortDescription"`
		Status           string   `json:"status"`
		Price            *float64 `json:"price"`
	} `json:"gifts"`
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// GiftRecords flattens a published gifts document. Gifts without an id are
// skipped; a document not shaped {"gifts":[...]} is an error.
func GiftRecords(version string, doc json.RawMessage) ([]GiftRecord, error) {
	var parsed giftsDoc
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, err
	}
	records := make([]GiftRecord, 0, len(parsed.Gifts))
	for _, g := range parsed.Gifts {
		if g.GiftID == "" {
			continue
		}
		records = append(records, GiftRecord{
			ID:               version + "_" + unsafeIDChars.ReplaceAllString(g.GiftID, "-"),
			GiftID:           g.GiftID,
			Version:          version,
			Title:            g.Title,
			ShortDescription: g.ShortDescription,
			Status:           g.Status,
			Price:            g.Price,
		})
	}
	return records, nil
}
