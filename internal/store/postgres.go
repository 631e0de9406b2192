package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps blobs in the registry_blobs table created by the
// migrations under db/migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects through the pgx stdlib driver and verifies the
// connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewPostgresStore(db), nil
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM registry_blobs WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_blobs (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return writeError(key, err)
}

func (s *PostgresStore) Create(ctx context.Context, key string, value []byte) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_blobs (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, value)
	if err != nil {
		return writeError(key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return writeError(key, err)
	}
	if affected == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, old, value []byte) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE registry_blobs
		SET value = $3, updated_at = NOW()
		WHERE key = $1 AND value = $2
	`, key, old, value)
	if err != nil {
		return writeError(key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return writeError(key, err)
	}
	if affected == 0 {
		return writeError(key, ErrPreconditionFailed)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
