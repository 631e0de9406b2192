package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	rr := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decodeMap(t, rr)["ok"]; ok != true {
		t.Fatalf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	rr := env.do(t, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if status := decodeMap(t, rr)["status"]; status != "ready" {
		t.Fatalf("expected ready, got %v", status)
	}
}

func TestReadyEndpointStoreDown(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	env.store.pingFn = func(context.Context) error { return errors.New("connection refused") }

	rr := env.do(t, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	payload := decodeMap(t, rr)
	checks, _ := payload["checks"].(map[string]any)
	storeCheck, _ := checks["store"].(map[string]any)
	if storeCheck["status"] != "error" || !strings.Contains(storeCheck["error"].(string), "refused") {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testToken, nil)
	env.do(t, http.MethodGet, "/api/registry/version", "", nil)

	rr := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"registry_http_requests_total", "registry_bootstraps_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}
