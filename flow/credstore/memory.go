package credstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory SecretStore with optional per-entry TTL.
//
// With a zero TTL entries never expire, which suits tests and demos.
// With a positive TTL it doubles as the dispatch layer's credential
// cache: entries silently disappear once stale, forcing a re-resolve.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	closed  bool

	// now is swappable for expiry tests.
	now func() time.Time
}

type memoryEntry struct {
	secret    string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an in-memory store. A ttl of zero disables
// expiry; a positive ttl expires each entry that long after its Set.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the stored secret, or ErrNotFound when absent or expired.
func (m *MemoryStore) Get(ctx context.Context, providerID string) (string, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return "", ErrStoreClosed
	}
	entry, ok := m.entries[providerID]
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Recheck under the write lock; a Set may have raced in.
		if cur, ok := m.entries[providerID]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, providerID)
		}
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.secret, nil
}

// Set stores the secret, restarting its TTL window.
func (m *MemoryStore) Set(ctx context.Context, providerID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	entry := memoryEntry{secret: secret}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.entries[providerID] = entry
	return nil
}

// Delete removes the secret if present.
func (m *MemoryStore) Delete(ctx context.Context, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.entries, providerID)
	return nil
}

// Close drops all entries and rejects further use.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}
