package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

const stateObjectPrefix = "state/"

// StateObjectStore keeps cache state as JSON objects in the bucket.
type StateObjectStore struct {
	objects repository.ObjectStorage
}

// Compile-time verification that StateObjectStore implements StateStore.
var _ repository.StateStore = (*StateObjectStore)(nil)

// NewStateObjectStore creates a state store on top of object storage.
func NewStateObjectStore(objects repository.ObjectStorage) *StateObjectStore {
	return &StateObjectStore{objects: objects}
}

// Load reads the state object for key.
func (s *StateObjectStore) Load(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.objects.Download(ctx, s.objectKey(key))
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, repository.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load cache state: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache state: %w", err)
	}
	return data, nil
}

// Save writes data as the state object for key, replacing any previous one.
func (s *StateObjectStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.objects.Upload(ctx, s.objectKey(key), bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("failed to save cache state: %w", err)
	}
	return nil
}

// Delete removes the state object for key.
func (s *StateObjectStore) Delete(ctx context.Context, key string) error {
	if err := s.objects.Delete(ctx, s.objectKey(key)); err != nil {
		return fmt.Errorf("failed to delete cache state: %w", err)
	}
	return nil
}

func (s *StateObjectStore) objectKey(key string) string {
	return stateObjectPrefix + key + ".json"
}
