// Package store implements the version store: an append-only key/value blob
// store keyed by opaque strings, with interchangeable backends.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("store: key not found")
	ErrExists             = errors.New("store: key already exists")
	ErrPreconditionFailed = errors.New("store: precondition failed")
)

// Store is the contract every backend satisfies. Get returns ErrNotFound for
// an absent key. Set failures are reported as *WriteError.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}

// Creator is implemented by backends that can write a key only if it is absent.
type Creator interface {
	Create(ctx context.Context, key string, value []byte) error
}

// Swapper is implemented by backends that can replace a value only if it
// still equals the value the caller read.
type Swapper interface {
	CompareAndSwap(ctx context.Context, key string, old, value []byte) error
}

// WriteError identifies the key whose write failed.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("store: write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func writeError(key string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Key: key, Err: err}
}

// Closer is implemented by backends holding connections or file handles.
type Closer interface {
	Close() error
}

// Close releases the backend if it holds resources.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
