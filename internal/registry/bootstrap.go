package registry

import (
	"context"
	"errors"
	"fmt"

	"giftregistry/api/internal/store"
)

// EnsureInitialized returns the meta document, creating it and the first
// published and draft bundles from the seed when the store is empty. It is
// idempotent and safe to race: the loser of a concurrent first run re-reads
// the winner's meta.
func (r *Registry) EnsureInitialized(ctx context.Context) (Meta, error) {
	meta, _, err := r.load(ctx)
	return meta, err
}

// load returns the current meta together with its encoded form.
func (r *Registry) load(ctx context.Context) (Meta, []byte, error) {
	raw, err := r.store.Get(ctx, MetaKey)
	if err == nil {
		meta, err := decodeMeta(raw)
		if err != nil {
			return Meta{}, nil, err
		}
		return meta, raw, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Meta{}, nil, fmt.Errorf("load meta: %w", err)
	}
	return r.bootstrap(ctx)
}

func (r *Registry) bootstrap(ctx context.Context) (Meta, []byte, error) {
	seed, err := r.seed.Seed(ctx)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("bootstrap: %w", err)
	}

	published := FirstVersion(LineagePublished)
	draft := FirstVersion(LineageDraft)
	for _, id := range []VersionID{published, draft} {
		if err := r.writeBundle(ctx, id, seed); err != nil {
			return Meta{}, nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	meta := initialMeta(r.now())
	raw, err := encodeMeta(meta)
	if err != nil {
		return Meta{}, nil, err
	}

	if creator, ok := store.CreatorOf(r.store); ok {
		err = creator.Create(ctx, MetaKey, raw)
		if errors.Is(err, store.ErrExists) {
			r.log.Info().Msg("meta created by a concurrent request, re-reading")
			return r.reload(ctx)
		}
	} else {
		err = r.store.Set(ctx, MetaKey, raw)
	}
	if err != nil {
		return Meta{}, nil, fmt.Errorf("bootstrap: write meta: %w", err)
	}

	r.log.Info().
		Str("published", string(meta.PublishedVersion)).
		Str("draft", string(meta.DraftVersion)).
		Msg("registry initialised from seed")
	if r.onBootstrap != nil {
		r.onBootstrap(meta.Clone())
	}
	if r.onPublish != nil {
		r.onPublish(ctx, published, seed)
	}
	return meta, raw, nil
}

func (r *Registry) reload(ctx context.Context) (Meta, []byte, error) {
	raw, err := r.store.Get(ctx, MetaKey)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("reload meta: %w", err)
	}
	meta, err := decodeMeta(raw)
	if err != nil {
		return Meta{}, nil, err
	}
	return meta, raw, nil
}
