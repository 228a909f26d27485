package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StateRepository implements repository.StateStore using a PostgreSQL key-value table.
type StateRepository struct {
	db DBTX
}

// NewStateRepository creates a new StateRepository instance.
func NewStateRepository(db DBTX) *StateRepository {
	return &StateRepository{db: db}
}

// EnsureSchema creates the cache_state table if it does not exist.
func (r *StateRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS cache_state (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create cache_state table: %w", err)
	}

	return nil
}

// Load retrieves the state stored under key.
func (r *StateRepository) Load(ctx context.Context, key string) ([]byte, error) {
	const query = `
		SELECT value
		FROM cache_state
		WHERE key = $1
	`

	var value []byte
	if err := r.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load cache state: %w", err)
	}

	return value, nil
}

// Save upserts the state stored under key.
func (r *StateRepository) Save(ctx context.Context, key string, data []byte) error {
	const query = `
		INSERT INTO cache_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Exec(ctx, query, key, data, time.Now()); err != nil {
		return fmt.Errorf("failed to save cache state: %w", err)
	}

	return nil
}

// Delete removes the state stored under key.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	const query = `
		DELETE FROM cache_state
		WHERE key = $1
	`

	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete cache state: %w", err)
	}

	return nil
}

// Compile-time verification that StateRepository implements repository.StateStore.
var _ repository.StateStore = (*StateRepository)(nil)
