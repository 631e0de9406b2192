package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SeedSource supplies the documents the store is initialised with.
type SeedSource interface {
	Seed(ctx context.Context) (Bundle, error)
}

// DirSeed reads the four documents from a directory laid out like the data
// keys, e.g. <dir>/data/gifts.json.
type DirSeed struct {
	Dir string
}

func (d DirSeed) Seed(_ context.Context) (Bundle, error) {
	var bundle Bundle
	for _, name := range DocNames {
		path := filepath.Join(d.Dir, filepath.FromSlash(name.File()))
		data, err := os.ReadFile(path)
		if err != nil {
			return Bundle{}, fmt.Errorf("read seed %s: %w", name, err)
		}
		if !json.Valid(data) {
			return Bundle{}, fmt.Errorf("seed %s is not valid JSON", path)
		}
		bundle.SetDoc(name, data)
	}
	return bundle, nil
}

// StaticSeed serves a fixed bundle.
type StaticSeed Bundle

func (s StaticSeed) Seed(context.Context) (Bundle, error) {
	return Bundle(s), nil
}
