package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"giftregistry/api/internal/store"
)

// BundleView is what an editor loads: the meta and both current bundles.
type BundleView struct {
	Meta      Meta   `json:"meta"`
	Published Bundle `json:"published"`
	Draft     Bundle `json:"draft"`
}

// ReadBundle bootstraps if needed and returns the meta with the published
// and draft bundles it points at.
func (r *Registry) ReadBundle(ctx context.Context) (BundleView, error) {
	meta, _, err := r.load(ctx)
	if err != nil {
		return BundleView{}, err
	}

	view := BundleView{Meta: meta}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := r.readBundle(gctx, meta.PublishedVersion)
		view.Published = b
		return err
	})
	g.Go(func() error {
		b, err := r.readBundle(gctx, meta.DraftVersion)
		view.Draft = b
		return err
	})
	if err := g.Wait(); err != nil {
		return BundleView{}, err
	}
	return view, nil
}

// PublishedVersion is the cheap probe public pages poll to detect a new
// publish.
func (r *Registry) PublishedVersion(ctx context.Context) (VersionID, error) {
	meta, _, err := r.load(ctx)
	if err != nil {
		return "", err
	}
	return meta.PublishedVersion, nil
}

// PublishedDocument returns one document of the live version.
func (r *Registry) PublishedDocument(ctx context.Context, name DocName) (VersionID, json.RawMessage, error) {
	meta, _, err := r.load(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := r.store.Get(ctx, VersionKey(meta.PublishedVersion, name))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, fmt.Errorf("bundle %s is missing %s", meta.PublishedVersion, name)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read %s of %s: %w", name, meta.PublishedVersion, err)
	}
	return meta.PublishedVersion, data, nil
}

