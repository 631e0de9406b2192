package registry

import (
	"testing"
	"time"
)

func TestVersionIDNext(t *testing.T) {
	next, err := VersionID("v000009").Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if next != "v000010" {
		t.Fatalf("expected v000010, got %s", next)
	}

	next, err = VersionID("d999999").Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if next != "d1000000" {
		t.Fatalf("expected the counter to widen past six digits, got %s", next)
	}
	if next.Number() != 1000000 || next.Lineage() != LineageDraft {
		t.Fatalf("unexpected parse of %s", next)
	}
}

func TestParseVersionIDRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "v1", "x000001", "v00000a", "v000000", "v-00001"} {
		if _, err := ParseVersionID(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	if _, err := ParseVersionID("d000123"); err != nil {
		t.Fatalf("ParseVersionID() error = %v", err)
	}
}

func TestMetaTransitionsKeepHeads(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	meta := initialMeta(now)

	drafted := meta.withDraft("d000002", now.Add(time.Second))
	if drafted.LastDraftSavedAt != now.Add(time.Second).UnixMilli() || drafted.LastPublishedAt != meta.LastPublishedAt {
		t.Fatalf("unexpected timestamps %+v", drafted)
	}
	if len(meta.DraftHistory) != 1 {
		t.Fatal("withDraft mutated its receiver")
	}

	published := drafted.withPublished("v000002", now)
	rolledBack := published.withoutLatestPublish(now)
	for _, m := range []Meta{drafted, published, rolledBack} {
		if err := m.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	}
	if rolledBack.PublishedVersion != "v000001" || len(published.History) != 2 {
		t.Fatalf("unexpected rollback %+v", rolledBack)
	}
}

func TestParseDocName(t *testing.T) {
	name, err := ParseDocName("theme")
	if err != nil || name.File() != "data/theme.tokens.json" {
		t.Fatalf("ParseDocName(theme) = %q, %v", name, err)
	}
	if _, err := ParseDocName("secrets"); err == nil {
		t.Fatal("expected unknown document to be rejected")
	}
	if key := VersionKey("v000003", DocCopy); key != "versions/v000003/data/copy.registry.json" {
		t.Fatalf("unexpected key %s", key)
	}
}
