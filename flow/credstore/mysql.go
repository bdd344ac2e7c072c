package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists provider secrets in MySQL, for deployments where
// several processes share one credential set.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS provider_keys (
	provider_id VARCHAR(255) PRIMARY KEY,
	secret      TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// NewMySQLStore connects using a go-sql-driver DSN
// ("user:pass@tcp(host:3306)/dbname?parseTime=true") and ensures the
// provider_keys table exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create provider_keys table: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Get returns the secret for providerID, or ErrNotFound.
func (s *MySQLStore) Get(ctx context.Context, providerID string) (string, error) {
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
func (s *MySQLStore) Set(ctx context.Context, providerID, secret string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_keys (provider_id, secret)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE secret = VALUES(secret)`,
		providerID, secret)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Delete removes the secret for providerID if present.
func (s *MySQLStore) Delete(ctx context.Context, providerID string) error {
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
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
