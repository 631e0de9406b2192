package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"giftregistry/api/internal/registry"
)

func testBundle() registry.Bundle {
	return registry.Bundle{
		Gifts: json.RawMessage(`{"gifts":[
			{"giftId":"tent","title":"Tent","primarySection":"Adventure","price":320,"status":"Available"},
			{"giftId":"kettle","title":"Copper kettle","shortDescription":"Stovetop","primarySection":"Home","price":45.5,"status":"Claimed"},
			{"giftId":"mixer","title":"Stand mixer","primarySection":"Home","price":0,"status":"Available"},
			{"giftId":"boat","title":"Canoe","primarySection":"Adventure","isDreamGift":true,"status":"Pending"},
			{"giftId":"mystery","title":"Surprise"}
		]}`),
		Copy:     json.RawMessage(`{"siteLabel":"Sam & Alex","middle":{"sectionHome":"For the home"}}`),
		Theme:    json.RawMessage(`{}`),
		Ordering: json.RawMessage(`{"sectionOrder":{"Home":["mixer","kettle"],"Adventure":["tent","boat"]}}`),
	}
}

func TestBuildSheet(t *testing.T) {
	sheet, err := BuildSheet("v000004", testBundle())
	if err != nil {
		t.Fatalf("BuildSheet() error = %v", err)
	}
	if sheet.Title != "Sam & Alex" || sheet.Version != "v000004" || sheet.Total != 5 {
		t.Fatalf("unexpected sheet header %+v", sheet)
	}
	if len(sheet.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sheet.Sections))
	}

	adventure := sheet.Sections[0]
	if adventure.Name != "Adventure" || adventure.Title != "Adventure" {
		t.Fatalf("unexpected first section %+v", adventure)
	}
	if adventure.Gifts[0].Title != "Canoe" || !adventure.Gifts[0].Dream {
		t.Fatalf("expected the dream gift pinned first, got %+v", adventure.Gifts)
	}
	if adventure.Gifts[1].Price != "$320" {
		t.Fatalf("unexpected price %q", adventure.Gifts[1].Price)
	}

	home := sheet.Sections[1]
	if home.Title != "For the home" {
		t.Fatalf("expected the section title from copy, got %q", home.Title)
	}
	if home.Gifts[0].Title != "Stand mixer" || home.Gifts[1].Title != "Copper kettle" {
		t.Fatalf("ordering not applied: %+v", home.Gifts)
	}
	if home.Gifts[0].Price != "Price varies" || home.Gifts[1].Price != "$45.50" {
		t.Fatalf("unexpected prices %+v", home.Gifts)
	}

	if sheet.Sections[2].Name != otherSection {
		t.Fatalf("expected unsectioned gifts last, got %+v", sheet.Sections[2])
	}
}

func TestBuildSheetToleratesOddDocuments(t *testing.T) {
	bundle := testBundle()
	bundle.Copy = json.RawMessage(`null`)
	bundle.Ordering = json.RawMessage(`[1,2]`)
	sheet, err := BuildSheet("v000001", bundle)
	if err != nil {
		t.Fatalf("BuildSheet() error = %v", err)
	}
	if sheet.Title != "Gift registry" || sheet.Total != 5 {
		t.Fatalf("unexpected sheet %+v", sheet)
	}

	bundle.Gifts = json.RawMessage(`[1,2,3]`)
	if _, err := BuildSheet("v000001", bundle); err == nil {
		t.Fatal("expected an error for a gifts document of another shape")
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewServiceWithRenderer(func(context.Context, string) ([]byte, error) {
		t.Fatal("PDF renderer must not run for HTML")
		return nil, nil
	})
	result, err := svc.Export(context.Background(), "v000004", testBundle(), FormatHTML)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "Sam--Alex-v000004.html" || !strings.HasPrefix(result.MimeType, "text/html") {
		t.Fatalf("unexpected result %s %s", result.Filename, result.MimeType)
	}
	html := string(result.Data)
	for _, want := range []string{"<title>Sam &amp; Alex</title>", "Version v000004 | 5 gifts", "For the home", "Stovetop", `class="status-claimed"`} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestExportPDFUsesRenderer(t *testing.T) {
	var rendered string
	svc := NewServiceWithRenderer(func(_ context.Context, html string) ([]byte, error) {
		rendered = html
		return []byte("%PDF-1.7"), nil
	})
	result, err := svc.Export(context.Background(), "v000002", testBundle(), FormatPDF)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if string(result.Data) != "%PDF-1.7" || result.MimeType != "application/pdf" || !strings.HasSuffix(result.Filename, ".pdf") {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(rendered, "Copper kettle") {
		t.Fatal("renderer did not receive the sheet html")
	}
}

func TestExportPDFDependencyMissing(t *testing.T) {
	svc := NewServiceWithRenderer(func(context.Context, string) ([]byte, error) {
		return nil, ErrPDFDependencyMissing
	})
	if _, err := svc.Export(context.Background(), "v000001", testBundle(), FormatPDF); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatPDF {
		t.Fatalf("ParseFormat(\"\") = %s, %v", f, err)
	}
	if f, err := ParseFormat(" HTML "); err != nil || f != FormatHTML {
		t.Fatalf("ParseFormat(HTML) = %s, %v", f, err)
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	if got := percentEncodeForDataURL("a b&é"); got != "a%20b%26%C3%A9" {
		t.Fatalf("percentEncodeForDataURL() = %s", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("Sam & Alex's list"); got != "Sam--Alexs-list" {
		t.Fatalf("sanitizeFilename() = %s", got)
	}
	if got := sanitizeFilename("&&&"); got != "registry" {
		t.Fatalf("expected fallback, got %s", got)
	}
}
