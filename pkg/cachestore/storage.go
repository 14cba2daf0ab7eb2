package cachestore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested key does not exist in storage.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded indicates the write would exceed the storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Storage is the byte-level key/value medium underneath the cache store.
// Implementations must return ErrNotFound for absent keys and
// ErrQuotaExceeded when a write would exceed a configured size limit.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
