// Package sqlite provides a local, file-backed state store for the cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

// StateStore implements repository.StateStore on a SQLite database file.
type StateStore struct {
	db *sql.DB
}

// Compile-time verification that StateStore implements repository.StateStore.
var _ repository.StateStore = (*StateStore)(nil)

// NewStateStore opens (or creates) the SQLite database at path and ensures the schema exists.
func NewStateStore(ctx context.Context, path string) (*StateStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection serialises writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_state (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache_state table: %w", err)
	}

	return &StateStore{db: db}, nil
}

// Load retrieves the state stored under key.
func (s *StateStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load cache state: %w", err)
	}

	return value, nil
}

// Save upserts the state stored under key.
func (s *StateStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save cache state: %w", err)
	}

	return nil
}

// Delete removes the state stored under key.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache state: %w", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *StateStore) Close() error {
	return s.db.Close()
}
