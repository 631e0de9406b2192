package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"giftregistry/api/internal/app"
	"giftregistry/api/internal/auth"
	"giftregistry/api/internal/export"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/store"
	"giftregistry/api/internal/undoring"
)

const testToken = "editor-secret"

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	seed := registry.StaticSeed{
		Gifts:    json.RawMessage(`{"gifts":[{"giftId":"mug","title":"Mug"}]}`),
		Copy:     json.RawMessage(`{"title":"Seed"}`),
		Theme:    json.RawMessage(`{}`),
		Ordering: json.RawMessage(`{"order":["mug"]}`),
	}
	reg := registry.New(store.NewMemory(), seed)
	verifier, err := auth.NewVerifier(testToken, "")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	server := httptest.NewServer(app.NewHTTPServer(app.New(reg, verifier, app.Deps{Exporter: export.NewService()}), "*").Handler())
	t.Cleanup(server.Close)
	return server
}

func edited(title string) registry.Bundle {
	return registry.Bundle{
		Gifts:    json.RawMessage(`{"gifts":[{"giftId":"mug","title":"` + title + `"}]}`),
		Copy:     json.RawMessage(`{"title":"` + title + `"}`),
		Theme:    json.RawMessage(`{}`),
		Ordering: json.RawMessage(`{"order":["mug"]}`),
	}
}

func TestSaveAndPublishFlow(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	c := New(api.URL, WithToken(testToken))

	view, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if view.Meta.DraftVersion != "d000001" {
		t.Fatalf("unexpected meta %+v", view.Meta)
	}

	c.SetWorking(edited("Blue mug"))
	meta, err := c.Save(ctx, registry.ModeSaveDraft)
	if err != nil {
		t.Fatalf("Save(draft) error = %v", err)
	}
	if meta.DraftVersion != "d000002" || c.Baseline().DraftVersion != "d000002" {
		t.Fatalf("baseline not adopted: %+v", c.Baseline())
	}

	meta, err = c.Save(ctx, registry.ModePublishLive)
	if err != nil {
		t.Fatalf("Save(publish) error = %v", err)
	}
	if meta.PublishedVersion != "v000002" {
		t.Fatalf("unexpected published version %s", meta.PublishedVersion)
	}

	version, err := c.PublishedVersion(ctx)
	if err != nil || version != "v000002" {
		t.Fatalf("PublishedVersion() = %s, %v", version, err)
	}

	meta, err = c.UndoPublish(ctx)
	if err != nil {
		t.Fatalf("UndoPublish() error = %v", err)
	}
	if meta.PublishedVersion != "v000001" || c.Baseline().PublishedVersion != "v000001" {
		t.Fatalf("unexpected meta after undo %+v", meta.Pointers())
	}
	if _, err := c.UndoPublish(ctx); !errors.Is(err, registry.ErrNoUndo) {
		t.Fatalf("expected ErrNoUndo, got %v", err)
	}
}

func TestSaveConflictAdoptsServerPointers(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	first := New(api.URL, WithToken(testToken))
	second := New(api.URL, WithToken(testToken))
	if _, err := first.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := second.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := first.Save(ctx, registry.ModeSaveDraft); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	_, err := second.Save(ctx, registry.ModeSaveDraft)
	var conflict *registry.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
	if conflict.Server.DraftVersion != "d000002" || conflict.Expected.DraftVersion != "d000001" {
		t.Fatalf("unexpected conflict %+v", conflict)
	}
	if second.Baseline().DraftVersion != "d000002" {
		t.Fatalf("server pointers not adopted: %+v", second.Baseline())
	}

	// A retry after reconciling succeeds.
	if _, err := second.Save(ctx, registry.ModeSaveDraft); err != nil {
		t.Fatalf("retry Save() error = %v", err)
	}
}

func TestSaveWithoutTokenStillSnapshots(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	c := New(api.URL)
	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := c.Save(ctx, registry.ModeSaveDraft); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if c.Ring().Len() != 1 {
		t.Fatalf("expected the snapshot to be taken before the token check, got %d", c.Ring().Len())
	}
	if _, err := c.UndoPublish(ctx); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSaveRequiresLoad(t *testing.T) {
	c := New("http://127.0.0.1:1", WithToken(testToken))
	if _, err := c.Save(context.Background(), registry.ModeSaveDraft); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestUndoLocalRestoresSnapshots(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	path := filepath.Join(t.TempDir(), "undo.json")
	ringStore := undoring.FileStore{Path: path}
	c := New(api.URL, WithToken(testToken), WithRing(ringStore.Load(undoring.DefaultCapacity), ringStore))
	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c.SetWorking(edited("First"))
	if _, err := c.Save(ctx, registry.ModeSaveDraft); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	c.SetWorking(edited("Second"))
	if _, err := c.Save(ctx, registry.ModeSaveDraft); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	c.SetWorking(edited("Unsaved"))

	restored, err := c.UndoLocal()
	if err != nil {
		t.Fatalf("UndoLocal() error = %v", err)
	}
	if string(restored.Copy) != `{"title":"Second"}` {
		t.Fatalf("expected the last saved payload, got %s", restored.Copy)
	}

	reloaded := ringStore.Load(undoring.DefaultCapacity)
	if reloaded.Len() != 1 {
		t.Fatalf("expected the persisted ring to hold 1 entry, got %d", reloaded.Len())
	}

	if _, err := c.UndoLocal(); err != nil {
		t.Fatalf("UndoLocal() error = %v", err)
	}
	if _, err := c.UndoLocal(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestAPIErrorCarriesStage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"meta":{"publishedVersion":"v000001","draftVersion":"d000001","history":["v000001"],"draftHistory":["d000001"]},"published":{},"draft":{}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"write_failed","stage":"theme"}`))
	}))
	defer server.Close()

	c := New(server.URL, WithToken(testToken))
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_, err := c.Save(context.Background(), registry.ModePublishLive)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "write_failed" || apiErr.Stage != "theme" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestExportHTML(t *testing.T) {
	api := newTestAPI(t)
	c := New(api.URL)
	data, err := c.Export(context.Background(), "html")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(data), "Mug") {
		t.Fatalf("export missing the published gift: %s", data)
	}

	_, err = c.Export(context.Background(), "docx")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_format" {
		t.Fatalf("expected invalid_format, got %v", err)
	}
}
