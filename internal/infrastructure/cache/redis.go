package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/vidcache/internal/domain/repository"
)

const (
	// stateKeyPrefix is the prefix for cache state keys in Redis.
	stateKeyPrefix = "vidcache:state:"
)

// RedisStateStore implements repository.StateStore using Redis as the backing store.
// State is stored without TTL; expiry of individual entries is handled by the cache.
type RedisStateStore struct {
	client *redis.Client
}

// Compile-time verification that RedisStateStore implements repository.StateStore.
var _ repository.StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore creates a new Redis-backed state store.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{
		client: client,
	}
}

// Load retrieves the state stored under key.
// Returns repository.ErrStateNotFound on miss.
func (s *RedisStateStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrStateNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return data, nil
}

// Save stores the state under key, replacing any previous value.
func (s *RedisStateStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.buildKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes the state stored under key.
func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a state record.
func (s *RedisStateStore) buildKey(key string) string {
	return stateKeyPrefix + key
}
