package store

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"giftregistry/api/internal/metrics"
)

// plain hides the optional capabilities of Memory.
type plain struct {
	Store
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestInstrumentedExposesCapabilities(t *testing.T) {
	wrapped := Instrument(NewMemory(), "memory", nil, nil)
	if _, ok := CreatorOf(wrapped); !ok {
		t.Fatal("expected Creator through the decorator")
	}
	if _, ok := SwapperOf(wrapped); !ok {
		t.Fatal("expected Swapper through the decorator")
	}

	bare := Instrument(plain{NewMemory()}, "memory", nil, nil)
	if _, ok := CreatorOf(bare); ok {
		t.Fatal("did not expect a Creator")
	}
	if _, ok := SwapperOf(bare); ok {
		t.Fatal("did not expect a Swapper")
	}
}

func TestInstrumentedRecordsOperations(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	s := Instrument(NewMemory(), "memory", m, nil)

	if _, err := s.Get(ctx, "meta.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "meta.json", []byte(`1`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	creator, _ := CreatorOf(s)
	if err := creator.Create(ctx, "meta.json", []byte(`2`)); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	swapper, _ := SwapperOf(s)
	if err := swapper.CompareAndSwap(ctx, "meta.json", []byte(`1`), []byte(`3`)); err != nil {
		t.Fatalf("CompareAndSwap() error = %v", err)
	}

	body := scrape(t, m)
	for _, want := range []string{
		`registry_store_operations_total{backend="memory",operation="get",status="not_found"} 1`,
		`registry_store_operations_total{backend="memory",operation="set",status="ok"} 1`,
		`registry_store_operations_total{backend="memory",operation="create",status="precondition_failed"} 1`,
		`registry_store_operations_total{backend="memory",operation="compare_and_swap",status="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestInstrumentedPassesErrorsThrough(t *testing.T) {
	ctx := context.Background()
	s := Instrument(failingStore{}, "broken", metrics.New(), nil)
	err := s.Set(ctx, "versions/v000002/data/copy.json", []byte(`{}`))
	var writeErr *WriteError
	if !errors.As(err, &writeErr) || writeErr.Key != "versions/v000002/data/copy.json" {
		t.Fatalf("expected the backend WriteError, got %v", err)
	}
	if s.Unwrap() != (failingStore{}) {
		t.Fatal("Unwrap() did not return the inner store")
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("unreachable")
}

func (failingStore) Set(_ context.Context, key string, _ []byte) error {
	return writeError(key, errors.New("unreachable"))
}

func (failingStore) Ping(context.Context) error {
	return errors.New("unreachable")
}
