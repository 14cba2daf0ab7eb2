package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStorage is a durable local Storage implementation backed by a
// SQLite database file. This is the default medium for the daemon: the
// cache survives restarts and lives entirely on the local disk.
type SQLiteStorage struct {
	db       *sql.DB
	maxBytes int64
}

// NewSQLiteStorage opens (or creates) the database at path and
// initializes the schema. maxBytes limits the total stored payload
// size; 0 means unlimited.
func NewSQLiteStorage(path string, maxBytes int64) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStorage{db: db, maxBytes: maxBytes}, nil
}

// Get retrieves a value by key.
func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return value, nil
}

// Set stores a value, enforcing the byte quota if one is configured.
func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.maxBytes > 0 {
		var used int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM cache_entries WHERE key != ?`,
			key).Scan(&used)
		if err != nil {
			return fmt.Errorf("sqlite quota check: %w", err)
		}
		if used+int64(len(value)) > s.maxBytes {
			return ErrQuotaExceeded
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
