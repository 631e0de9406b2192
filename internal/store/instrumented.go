package store

import (
	"context"
	"errors"
	"time"

	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/metrics"
)

// Instrumented decorates a backend with metrics and debug logging. The
// optional capabilities of the inner store are reached through CreatorOf and
// SwapperOf.
type Instrumented struct {
	inner   Store
	backend string
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Instrument wraps inner. metrics and log may be nil.
func Instrument(inner Store, backend string, m *metrics.Metrics, log *logger.Logger) *Instrumented {
	if log == nil {
		log = logger.Nop()
	}
	return &Instrumented{inner: inner, backend: backend, metrics: m, log: log}
}

// Unwrap returns the decorated backend.
func (s *Instrumented) Unwrap() Store {
	return s.inner
}

func (s *Instrumented) observe(operation, key string, started time.Time, err error) {
	duration := time.Since(started)
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
		err = nil
	case errors.Is(err, ErrExists), errors.Is(err, ErrPreconditionFailed):
		status = "precondition_failed"
		err = nil
	default:
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(s.backend, operation, status, duration)
	}
	s.log.LogStoreOperation(s.backend, operation, key, duration, err)
}

func (s *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	started := time.Now()
	value, err := s.inner.Get(ctx, key)
	s.observe("get", key, started, err)
	return value, err
}

func (s *Instrumented) Set(ctx context.Context, key string, value []byte) error {
	started := time.Now()
	err := s.inner.Set(ctx, key, value)
	s.observe("set", key, started, err)
	return err
}

func (s *Instrumented) Ping(ctx context.Context) error {
	started := time.Now()
	err := s.inner.Ping(ctx)
	s.observe("ping", "", started, err)
	return err
}

// AsCreator returns a Creator when the inner backend implements one.
func (s *Instrumented) AsCreator() (Creator, bool) {
	inner, ok := s.inner.(Creator)
	if !ok {
		return nil, false
	}
	return creatorFunc(func(ctx context.Context, key string, value []byte) error {
		started := time.Now()
		err := inner.Create(ctx, key, value)
		s.observe("create", key, started, err)
		return err
	}), true
}

// AsSwapper returns a Swapper when the inner backend implements one.
func (s *Instrumented) AsSwapper() (Swapper, bool) {
	inner, ok := s.inner.(Swapper)
	if !ok {
		return nil, false
	}
	return swapperFunc(func(ctx context.Context, key string, old, value []byte) error {
		started := time.Now()
		err := inner.CompareAndSwap(ctx, key, old, value)
		s.observe("compare_and_swap", key, started, err)
		return err
	}), true
}

func (s *Instrumented) Close() error {
	return Close(s.inner)
}

type creatorFunc func(context.Context, string, []byte) error

func (f creatorFunc) Create(ctx context.Context, key string, value []byte) error {
	return f(ctx, key, value)
}

type swapperFunc func(context.Context, string, []byte, []byte) error

func (f swapperFunc) CompareAndSwap(ctx context.Context, key string, old, value []byte) error {
	return f(ctx, key, old, value)
}

// CreatorOf reports the create-if-absent capability of s, looking through
// the Instrumented decorator.
func CreatorOf(s Store) (Creator, bool) {
	if inst, ok := s.(*Instrumented); ok {
		return inst.AsCreator()
	}
	c, ok := s.(Creator)
	return c, ok
}

// SwapperOf reports the compare-and-swap capability of s, looking through
// the Instrumented decorator.
func SwapperOf(s Store) (Swapper, bool) {
	if inst, ok := s.(*Instrumented); ok {
		return inst.AsSwapper()
	}
	c, ok := s.(Swapper)
	return c, ok
}
