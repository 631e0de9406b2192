package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMinioStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping minio integration test in short mode")
	}
	endpoint := strings.TrimSpace(os.Getenv("REGISTRY_TEST_MINIO_ENDPOINT"))
	if endpoint == "" {
		t.Skip("REGISTRY_TEST_MINIO_ENDPOINT is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s, err := NewMinioStore(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("REGISTRY_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("REGISTRY_TEST_MINIO_SECRET_KEY"),
		Bucket:    "registry-test-" + time.Now().UTC().Format("20060102150405"),
	})
	if err != nil {
		t.Fatalf("NewMinioStore() error = %v", err)
	}
	testBackend(t, s)
}
