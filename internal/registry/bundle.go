package registry

import (
	"encoding/json"
	"fmt"
)

// DocName names one of the four documents of a bundle.
type DocName string

const (
	DocGifts    DocName = "gifts"
	DocCopy     DocName = "copy"
	DocTheme    DocName = "theme"
	DocOrdering DocName = "ordering"
)

// DocNames is the fixed order documents are written in.
var DocNames = []DocName{DocGifts, DocCopy, DocTheme, DocOrdering}

var docFiles = map[DocName]string{
	DocGifts:    "data/gifts.json",
	DocCopy:     "data/copy.registry.json",
	DocTheme:    "data/theme.tokens.json",
	DocOrdering: "data/ordering.registry.json",
}

// ParseDocName accepts a document name such as "gifts".
func ParseDocName(s string) (DocName, error) {
	name := DocName(s)
	if _, ok := docFiles[name]; !ok {
		return "", fmt.Errorf("unknown document %q", s)
	}
	return name, nil
}

// File returns the seed/data file name of the document.
func (n DocName) File() string {
	return docFiles[n]
}

// VersionKey is the store key of one document of one version.
func VersionKey(id VersionID, name DocName) string {
	return "versions/" + string(id) + "/" + docFiles[name]
}

// Bundle holds the four documents of one version as opaque JSON.
type Bundle struct {
	Gifts    json.RawMessage `json:"gifts"`
	Copy     json.RawMessage `json:"copy"`
	Theme    json.RawMessage `json:"theme"`
	Ordering json.RawMessage `json:"ordering"`
}

// Doc returns the named document.
func (b Bundle) Doc(name DocName) json.RawMessage {
	switch name {
	case DocGifts:
		return b.Gifts
	case DocCopy:
		return b.Copy
	case DocTheme:
		return b.Theme
	case DocOrdering:
		return b.Ordering
	}
	return nil
}

// SetDoc replaces the named document.
func (b *Bundle) SetDoc(name DocName, doc json.RawMessage) {
	switch name {
	case DocGifts:
		b.Gifts = doc
	case DocCopy:
		b.Copy = doc
	case DocTheme:
		b.Theme = doc
	case DocOrdering:
		b.Ordering = doc
	}
}

var jsonNull = json.RawMessage("null")

// encodedDoc returns the bytes stored for a document. A missing document is
// stored as JSON null.
func (b Bundle) encodedDoc(name DocName) []byte {
	doc := b.Doc(name)
	if len(doc) == 0 {
		return jsonNull
	}
	return doc
}
