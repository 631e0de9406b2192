package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketBlobs = []byte("blobs")

// BoltStore keeps every key in a single bbolt bucket inside one file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if needed) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketBlobs, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(bucketBlobs).Get([]byte(key))
		if val == nil {
			return ErrNotFound
		}
		data = bytes.Clone(val)
		return nil
	})
	return data, err
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(key), value)
	})
	return writeError(key, err)
}

func (s *BoltStore) Create(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBlobs)
		if bucket.Get([]byte(key)) != nil {
			return ErrExists
		}
		return bucket.Put([]byte(key), value)
	})
	if errors.Is(err, ErrExists) {
		return ErrExists
	}
	return writeError(key, err)
}

func (s *BoltStore) CompareAndSwap(_ context.Context, key string, old, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBlobs)
		current := bucket.Get([]byte(key))
		if current == nil || !bytes.Equal(current, old) {
			return ErrPreconditionFailed
		}
		return bucket.Put([]byte(key), value)
	})
	return writeError(key, err)
}

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketBlobs) == nil {
			return fmt.Errorf("bucket %s missing", bucketBlobs)
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
