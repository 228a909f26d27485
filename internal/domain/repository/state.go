package repository

import "context"

// StateStore is durable key-value storage for the serialized cache state.
// Implementations should be provided by the infrastructure layer (e.g., SQLite, Redis, PostgreSQL).
type StateStore interface {
	// Load returns the value stored under key.
	// Returns ErrStateNotFound if nothing has been saved under key.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the value stored under key.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes the value stored under key.
	// Returns nil if the key does not exist.
	Delete(ctx context.Context, key string) error
}
