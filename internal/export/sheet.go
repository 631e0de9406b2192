package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"giftregistry/api/internal/registry"
)

const otherSection = "Other"

// Sheet is the printable view of one published version.
type Sheet struct {
	Title    string
	Version  string
	Sections []SheetSection
	Total    int
}

type SheetSection struct {
	Name  string
	Title string
	Gifts []SheetGift
}

type SheetGift struct {
	Title       string
	Description string
	Price       string
	Status      string
	Dream       bool
}

type sheetGiftDoc struct {
	GiftID           string   `json:"giftId"`
	Title            string   `json:"title"`
	ShortDescription string   `json:"shortDescription"`
	Status           string   `json:"status"`
	Price            *float64 `json:"price"`
	PrimarySection   string   `json:"primarySection"`
	IsDreamGift      bool     `json:"isDreamGift"`
}

type sheetCopyDoc struct {
	SiteLabel string            `json:"siteLabel"`
	Title     string            `json:"title"`
	Middle    map[string]string `json:"middle"`
}

type sheetOrderingDoc struct {
	SectionOrder map[string][]string `json:"sectionOrder"`
}

// BuildSheet lays out the gifts of bundle by section. Documents are read
// leniently: a copy or ordering document of another shape only loses titles
// or ordering, while a gifts document that is not {"gifts":[...]} is an error.
func BuildSheet(version registry.VersionID, bundle registry.Bundle) (Sheet, error) {
	var gifts struct {
		Gifts []sheetGiftDoc `json:"gifts"`
	}
	if err := json.Unmarshal(bundle.Gifts, &gifts); err != nil {
		return Sheet{}, fmt.Errorf("gifts document: %w", err)
	}

	var copyDoc sheetCopyDoc
	_ = json.Unmarshal(bundle.Copy, &copyDoc)
	var ordering sheetOrderingDoc
	_ = json.Unmarshal(bundle.Ordering, &ordering)

	sheet := Sheet{Title: firstNonEmpty(copyDoc.SiteLabel, copyDoc.Title, "Gift registry"), Version: string(version)}

	bySection := map[string][]sheetGiftDoc{}
	var names []string
	for _, gift := range gifts.Gifts {
		name := gift.PrimarySection
		if name == "" {
			name = otherSection
		}
		if _, seen := bySection[name]; !seen {
			names = append(names, name)
		}
		bySection[name] = append(bySection[name], gift)
	}
	// Gifts without a section always print last.
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] != otherSection && names[j] == otherSection
	})

	for _, name := range names {
		ordered := orderSection(bySection[name], ordering.SectionOrder[name])
		section := SheetSection{
			Name:  name,
			Title: firstNonEmpty(copyDoc.Middle["section"+name], name),
		}
		for _, gift := range ordered {
			section.Gifts = append(section.Gifts, SheetGift{
				Title:       firstNonEmpty(gift.Title, gift.GiftID),
				Description: gift.ShortDescription,
				Price:       formatPrice(gift.Price),
				Status:      gift.Status,
				Dream:       gift.IsDreamGift,
			})
		}
		sheet.Total += len(section.Gifts)
		sheet.Sections = append(sheet.Sections, section)
	}
	return sheet, nil
}

// orderSection sorts gifts by their position in order, unlisted gifts after
// listed ones, then pins dream gifts to the front. Both sorts are stable.
func orderSection(gifts []sheetGiftDoc, order []string) []sheetGiftDoc {
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	position := func(g sheetGiftDoc) int {
		if i, ok := index[g.GiftID]; ok {
			return i
		}
		return len(order)
	}
	out := append([]sheetGiftDoc(nil), gifts...)
	sort.SliceStable(out, func(i, j int) bool {
		return position(out[i]) < position(out[j])
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsDreamGift && !out[j].IsDreamGift
	})
	return out
}

func formatPrice(price *float64) string {
	if price == nil || *price <= 0 {
		return "Price varies"
	}
	formatted := fmt.Sprintf("$%.2f", *price)
	return strings.TrimSuffix(formatted, ".00")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
