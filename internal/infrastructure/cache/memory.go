package cache

import (
	"context"
	"sync"

	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

// MemoryStateStore implements repository.StateStore in process memory.
// State does not survive a restart; it is meant for tests and ephemeral deployments.
type MemoryStateStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Compile-time verification that MemoryStateStore implements repository.StateStore.
var _ repository.StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStateStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, repository.ErrStateNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStateStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}
