package registry

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// MetaKey is the single mutable key of the store.
const MetaKey = "meta/registry-current.json"

const SchemaVersion = 1

// Meta is the pointer record: which bundles are live and which are staged,
// and the chains of earlier pointers. Timestamps are unix milliseconds.
type Meta struct {
	PublishedVersion VersionID   `json:"publishedVersion"`
	DraftVersion     VersionID   `json:"draftVersion"`
	LastPublishedAt  int64       `json:"lastPublishedAt"`
	LastDraftSavedAt int64       `json:"lastDraftSavedAt"`
	History          []VersionID `json:"history"`
	DraftHistory     []VersionID `json:"draftHistory"`
	SchemaVersion    int         `json:"schemaVersion"`
}

// Pointers are the two ids a client must echo back as its expected state.
type Pointers struct {
	PublishedVersion VersionID `json:"publishedVersion"`
	DraftVersion     VersionID `json:"draftVersion"`
}

func initialMeta(now time.Time) Meta {
	ts := now.UnixMilli()
	published := FirstVersion(LineagePublished)
	draft := FirstVersion(LineageDraft)
	return Meta{
		PublishedVersion: published,
		DraftVersion:     draft,
		LastPublishedAt:  ts,
		LastDraftSavedAt: ts,
		History:          []VersionID{published},
		DraftHistory:     []VersionID{draft},
		SchemaVersion:    SchemaVersion,
	}
}

func (m Meta) Pointers() Pointers {
	return Pointers{PublishedVersion: m.PublishedVersion, DraftVersion: m.DraftVersion}
}

// Clone returns a deep copy so callers never alias the history slices.
func (m Meta) Clone() Meta {
	out := m
	out.History = slices.Clone(m.History)
	out.DraftHistory = slices.Clone(m.DraftHistory)
	return out
}

// Validate checks the structural invariants of the pointer record.
func (m Meta) Validate() error {
	if m.PublishedVersion.Lineage() != LineagePublished {
		return fmt.Errorf("meta: publishedVersion %q is not a published id", m.PublishedVersion)
	}
	if m.DraftVersion.Lineage() != LineageDraft {
		return fmt.Errorf("meta: draftVersion %q is not a draft id", m.DraftVersion)
	}
	if len(m.History) == 0 || m.History[0] != m.PublishedVersion {
		return fmt.Errorf("meta: history head does not match publishedVersion %q", m.PublishedVersion)
	}
	if len(m.DraftHistory) == 0 || m.DraftHistory[0] != m.DraftVersion {
		return fmt.Errorf("meta: draftHistory head does not match draftVersion %q", m.DraftVersion)
	}
	return nil
}

// withDraft returns the meta after committing a new draft version.
func (m Meta) withDraft(id VersionID, now time.Time) Meta {
	next := m.Clone()
	next.DraftVersion = id
	next.LastDraftSavedAt = now.UnixMilli()
	next.DraftHistory = append([]VersionID{id}, m.DraftHistory...)
	return next
}

// withPublished returns the meta after committing a new published version.
func (m Meta) withPublished(id VersionID, now time.Time) Meta {
	next := m.Clone()
	next.PublishedVersion = id
	next.LastPublishedAt = now.UnixMilli()
	next.History = append([]VersionID{id}, m.History...)
	return next
}

// withoutLatestPublish drops history[0]; callers guarantee len(History) >= 2.
func (m Meta) withoutLatestPublish(now time.Time) Meta {
	next := m.Clone()
	next.History = slices.Clone(m.History[1:])
	next.PublishedVersion = next.History[0]
	next.LastPublishedAt = now.UnixMilli()
	return next
}

func decodeMeta(data []byte) (Meta, error) {
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode meta: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

func encodeMeta(meta Meta) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	return data, nil
}
