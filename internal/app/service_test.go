package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"giftregistry/api/internal/auth"
	"giftregistry/api/internal/metrics"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/search"
	"giftregistry/api/internal/store"
)

const testToken = "test-token"

// fakeStore lets tests fail individual store calls.
type fakeStore struct {
	*store.Memory
	setFn  func(key string) error
	pingFn func(context.Context) error
}

func (f *fakeStore) Set(ctx context.Context, key string, value []byte) error {
	if f.setFn != nil {
		if err := f.setFn(key); err != nil {
			return err
		}
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func testSeed() registry.StaticSeed {
	return registry.StaticSeed{
		Gifts:    json.RawMessage(`{"gifts":[{"giftId":"kettle","title":"Copper kettle"}]}`),
		Copy:     json.RawMessage(`{"title":"Registry"}`),
		Theme:    json.RawMessage(`{"accent":"#fff"}`),
		Ordering: json.RawMessage(`{"order":["kettle"]}`),
	}
}

type testEnv struct {
	store   *fakeStore
	service *Service
	server  *HTTPServer
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, secret string, searchSvc *search.Service) *testEnv {
	t.Helper()
	fs := &fakeStore{Memory: store.NewMemory()}
	m := metrics.New()
	reg := registry.New(fs, testSeed(), RegistryHooks(Deps{Search: searchSvc, Metrics: m})...)
	verifier, err := auth.NewVerifier(secret, "")
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	svc := New(reg, verifier, Deps{Search: searchSvc, Metrics: m})
	return &testEnv{store: fs, service: svc, server: NewHTTPServer(svc, "*"), metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestServiceWriteRequiresFields(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	_, err := env.service.Write(context.Background(), WriteInput{Mode: "save_draft"})
	if !errors.Is(err, errMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	_, err = env.service.Write(context.Background(), WriteInput{Mode: "publish"})
	if !errors.Is(err, registry.ErrInvalidMode) {
		t.Fatalf("expected invalid mode before field checks, got %v", err)
	}
}

func TestServiceUndoRequiresMode(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	if _, err := env.service.UndoPublish(context.Background(), UndoInput{Mode: "undo"}); !errors.Is(err, registry.ErrInvalidMode) {
		t.Fatalf("expected invalid mode, got %v", err)
	}
}

func TestServiceAuthorize(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	if err := env.service.Authorize(testToken); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if err := env.service.Authorize("wrong"); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	open := newTestEnv(t, "", nil)
	if err := open.service.Authorize(""); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected an unconfigured secret to refuse writes, got %v", err)
	}
}

func TestMapErrorCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&registry.ConflictError{}, http.StatusConflict, "version_conflict"},
		{&registry.WriteFailedError{Stage: "gifts"}, http.StatusInternalServerError, "write_failed"},
		{registry.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"},
		{registry.ErrNoUndo, http.StatusBadRequest, "no_undo"},
		{search.ErrUnavailable, http.StatusServiceUnavailable, "search_unavailable"},
		{errMissingFields, http.StatusBadRequest, "missing_fields"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code, _, _ := mapError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("mapError(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
