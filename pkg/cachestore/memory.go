package cachestore

import (
	"context"
	"sync"
)

// MemoryStorage is a thread-safe, in-memory Storage implementation.
// Used in tests and as a fallback when no durable medium is configured.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     map[string][]byte
	maxBytes int64
	size     int64
}

// NewMemoryStorage creates an in-memory storage.
// maxBytes limits the total payload size; 0 means unlimited.
func NewMemoryStorage(maxBytes int64) *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

// Get retrieves a value by key.
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Set stores a value, enforcing the byte quota if one is configured.
func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size - int64(len(m.data[key])) + int64(len(value))
	if m.maxBytes > 0 && newSize > m.maxBytes {
		return ErrQuotaExceeded
	}

	m.data[key] = value
	m.size = newSize
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.size -= int64(len(m.data[key]))
	delete(m.data, key)
	return nil
}

// Close releases resources. No-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
