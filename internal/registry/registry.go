// Package registry implements the versioned document protocol of the gift
// registry: immutable version bundles, the meta pointer document, the
// two-phase write, optimistic conflict detection and publish rollback.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/store"
)

// Registry coordinates every read and mutation of one dataset. It holds no
// mutable state of its own; the meta document in the store is the only
// shared record.
type Registry struct {
	store   store.Store
	seed    SeedSource
	now     func() time.Time
	log     *logger.Logger
	metaCAS bool

	onPublish   func(context.Context, VersionID, Bundle)
	onBootstrap func(Meta)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used for meta timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithMetaCAS makes the meta write a compare-and-swap against the bytes read
// at the start of the operation, on stores that implement store.Swapper.
// A lost race is then reported as a *ConflictError.
func WithMetaCAS(enabled bool) Option {
	return func(r *Registry) {
		r.metaCAS = enabled
	}
}

// WithPublishHook registers a callback run after a new published version is
// committed (including the one created by bootstrap).
func WithPublishHook(fn func(context.Context, VersionID, Bundle)) Option {
	return func(r *Registry) {
		r.onPublish = fn
	}
}

// WithBootstrapHook registers a callback run after the meta document was
// created from the seed.
func WithBootstrapHook(fn func(Meta)) Option {
	return func(r *Registry) {
		r.onBootstrap = fn
	}
}

func New(s store.Store, seed SeedSource, opts ...Option) *Registry {
	r := &Registry{
		store: s,
		seed:  seed,
		now:   time.Now,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks the underlying store.
func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// writeBundle stores the four documents of id in the fixed order, stopping
// at the first failure.
func (r *Registry) writeBundle(ctx context.Context, id VersionID, bundle Bundle) error {
	for _, name := range DocNames {
		if err := r.store.Set(ctx, VersionKey(id, name), bundle.encodedDoc(name)); err != nil {
			return &WriteFailedError{Stage: string(name), Version: id, Err: err}
		}
	}
	return nil
}

func (r *Registry) readBundle(ctx context.Context, id VersionID) (Bundle, error) {
	var bundle Bundle
	for _, name := range DocNames {
		data, err := r.store.Get(ctx, VersionKey(id, name))
		if errors.Is(err, store.ErrNotFound) {
			return Bundle{}, fmt.Errorf("bundle %s is missing %s", id, name)
		}
		if err != nil {
			return Bundle{}, fmt.Errorf("read %s of %s: %w", name, id, err)
		}
		bundle.SetDoc(name, data)
	}
	return bundle, nil
}

// commitMeta writes next over the meta document. prev is the encoded meta
// the operation started from; it is only consulted when CAS is enabled.
func (r *Registry) commitMeta(ctx context.Context, prev []byte, next Meta) error {
	data, err := encodeMeta(next)
	if err != nil {
		return err
	}
	if r.metaCAS && prev != nil {
		if swapper, ok := store.SwapperOf(r.store); ok {
			return swapper.CompareAndSwap(ctx, MetaKey, prev, data)
		}
	}
	return r.store.Set(ctx, MetaKey, data)
}

// lostRace converts a failed compare-and-swap into a conflict carrying the
// pointers that won.
func (r *Registry) lostRace(ctx context.Context, expected Pointers) error {
	current, _, err := r.load(ctx)
	if err != nil {
		return err
	}
	return &ConflictError{Expected: expected, Server: current.Pointers()}
}
