package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T, prefix string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), prefix)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t, "registry:")
	testBackend(t, store)
}

func TestRedisKeysArePrefixed(t *testing.T) {
	store, s := setupTestRedis(t, "registry:")
	ctx := context.Background()
	if err := store.Set(ctx, "meta.json", []byte(`{}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get("registry:meta.json")
	if err != nil {
		t.Fatalf("expected prefixed key in redis: %v", err)
	}
	if got != `{}` {
		t.Fatalf("unexpected value %q", got)
	}
	if s.Exists("meta.json") {
		t.Fatal("unprefixed key written")
	}
}

func TestRedisCompareAndSwapSeesOutsideWrite(t *testing.T) {
	store, s := setupTestRedis(t, "")
	ctx := context.Background()
	if err := store.Set(ctx, "meta.json", []byte(`"a"`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Another process rewrites the pointer doc.
	if err := s.Set("meta.json", `"z"`); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}
	if err := store.CompareAndSwap(ctx, "meta.json", []byte(`"a"`), []byte(`"b"`)); err == nil {
		t.Fatal("expected the swap to fail after an outside write")
	}
	got, _ := store.Get(ctx, "meta.json")
	if string(got) != `"z"` {
		t.Fatalf("outside write lost: %s", got)
	}
}

func TestNewRedisStoreWithClient(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	store := NewRedisStoreWithClient(client, "p:")
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", ""); err == nil {
		t.Fatal("expected an error for an invalid url")
	}
}
