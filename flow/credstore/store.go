// Package credstore provides pluggable storage for provider API keys.
//
// The dispatch layer consults a SecretStore as its lowest-precedence
// credential source, behind per-run overrides and environment lookup.
// Backends: in-memory (with TTL, used as the resolver cache), SQLite
// for single-process deployments, and MySQL for shared ones.
package credstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no secret is stored for the
// provider.
var ErrNotFound = errors.New("credstore: secret not found")

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("credstore: store is closed")

// SecretStore holds provider API keys, keyed by provider id
// ("anthropic", "openai", ...).
//
// Implementations must be safe for concurrent use. Get returns
// ErrNotFound when no secret exists; any other error means the backend
// itself failed.
type SecretStore interface {
	// Get returns the secret for providerID.
	Get(ctx context.Context, providerID string) (string, error)

	// Set stores or replaces the secret for providerID.
	Set(ctx context.Context, providerID, secret string) error

	// Delete removes the secret for providerID. Deleting a missing
	// secret is not an error.
	Delete(ctx context.Context, providerID string) error

	// Close releases backend resources.
	Close() error
}
