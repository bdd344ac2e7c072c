package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists provider secrets in a single-file database.
//
// Zero-setup option for single-process deployments and development:
// pass ":memory:" for an ephemeral database or a file path for a
// durable one. WAL mode keeps reads concurrent with the single writer.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS provider_keys (
	provider_id TEXT PRIMARY KEY,
	secret      TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the provider_keys table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create provider_keys table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the secret for providerID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, providerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	var secret string
	err := s.db.QueryRowContext(ctx,
		"SELECT secret FROM provider_keys WHERE provider_id = ?", providerID,
	).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query secret: %w", err)
	}
	return secret, nil
}

// Set stores or replaces the secret for providerID.
func (s *SQLiteStore) Set(ctx context.Context, providerID, secret string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_keys (provider_id, secret, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider_id) DO UPDATE SET
			secret = excluded.secret,
			updated_at = CURRENT_TIMESTAMP`,
		providerID, secret)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Delete removes the secret for providerID if present.
func (s *SQLiteStore) Delete(ctx context.Context, providerID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM provider_keys WHERE provider_id = ?", providerID)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
