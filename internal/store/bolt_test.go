package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestBolt(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "registry.db")
	s, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt() error = %v", err)
	}
	return s, path
}

func TestBoltStore(t *testing.T) {
	s, _ := openTestBolt(t)
	defer s.Close()
	testBackend(t, s)
}

func TestBoltSwapRace(t *testing.T) {
	s, _ := openTestBolt(t)
	defer s.Close()
	testSwapRace(t, s)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestBolt(t)
	if err := s.Set(ctx, "meta.json", []byte(`{"publishedVersion":"v000003"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(ctx, "meta.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"publishedVersion":"v000003"}` {
		t.Fatalf("unexpected value %s", got)
	}
}
