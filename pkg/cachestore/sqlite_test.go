package cachestore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T, maxBytes int64) *SQLiteStorage {
	t.Helper()

	storage, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "cache.db"), maxBytes)
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestSQLiteStorage_SetAndGet(t *testing.T) {
	storage := newTestSQLite(t, 0)
	ctx := context.Background()

	if err := storage.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := storage.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get: got %s, want v1", got)
	}
}

func TestSQLiteStorage_Get_NotFound(t *testing.T) {
	storage := newTestSQLite(t, 0)

	if _, err := storage.Get(context.Background(), "absent"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_Overwrite(t *testing.T) {
	storage := newTestSQLite(t, 0)
	ctx := context.Background()

	if err := storage.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := storage.Set(ctx, "k1", []byte("v2")); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	got, err := storage.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get after overwrite: got %s, want v2", got)
	}
}

func TestSQLiteStorage_Delete(t *testing.T) {
	storage := newTestSQLite(t, 0)
	ctx := context.Background()

	if err := storage.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := storage.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := storage.Get(ctx, "k1"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after Delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := storage.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}

func TestSQLiteStorage_Quota(t *testing.T) {
	storage := newTestSQLite(t, 100)
	ctx := context.Background()

	if err := storage.Set(ctx, "k1", make([]byte, 60)); err != nil {
		t.Fatalf("First write within quota failed: %v", err)
	}
	if err := storage.Set(ctx, "k2", make([]byte, 60)); err != ErrQuotaExceeded {
		t.Errorf("Expected ErrQuotaExceeded, got %v", err)
	}

	// Overwriting an existing key is measured against the key's new
	// size, not cumulatively.
	if err := storage.Set(ctx, "k1", make([]byte, 90)); err != nil {
		t.Errorf("Overwrite within quota failed: %v", err)
	}
}

func TestSQLiteStorage_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := NewSQLiteStorage(path, 0)
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	if err := first.Set(ctx, "k1", []byte("survives")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := NewSQLiteStorage(path, 0)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "survives" {
		t.Errorf("Get after reopen: got %s, want survives", got)
	}
}
