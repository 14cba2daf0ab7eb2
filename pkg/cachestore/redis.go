package cachestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStorage is a Storage implementation backed by Redis, for
// deployments where several dashboard processes share one cache.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage creates a Redis-backed storage.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStorage{client: client}
}

// Get retrieves a value by key.
func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores a value. Expiry is handled by the store's own TTL
// bookkeeping, so entries are written without a Redis TTL: an expired
// entry must remain readable for the offline stale-read policy.
func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
