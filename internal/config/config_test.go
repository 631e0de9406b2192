package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGISTRY_STORE", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("REGISTRY_META_CAS", "")
	t.Setenv("REGISTRY_SHUTDOWN_TIMEOUT_SECONDS", "")

	cfg := Load()
	if cfg.Addr == "" || cfg.StoreBackend != "bolt" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SMTPPort != "587" || cfg.MetaCAS {
		t.Fatalf("unexpected smtp/cas defaults %q %v", cfg.SMTPPort, cfg.MetaCAS)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REGISTRY_STORE", "Postgres")
	t.Setenv("REGISTRY_META_CAS", "true")
	t.Setenv("REGISTRY_SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("REGISTRY_NOTIFY_PUBLISH", "a@example.com")

	cfg := Load()
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.StoreBackend)
	}
	if !cfg.MetaCAS || cfg.ShutdownTimeout != 3*time.Second || cfg.NotifyPublish != "a@example.com" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestGetenvFallbacks(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "ten")
	t.Setenv("CFG_TEST_BOOL", "maybe")
	if got := getenvInt("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("getenvInt() = %d, want fallback", got)
	}
	if got := getenvBool("CFG_TEST_BOOL", true); !got {
		t.Fatalf("getenvBool() = false, want fallback")
	}
	if got := getenv("CFG_TEST_MISSING", "x"); got != "x" {
		t.Fatalf("getenv() = %q", got)
	}
}
