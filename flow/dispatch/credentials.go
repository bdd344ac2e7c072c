package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nodecanvas/mediagraph/flow/credstore"
)

// DefaultCredentialTTL bounds how long a SecretStore lookup stays
// cached. After expiry the next dispatch re-resolves, so key rotations
// in the store take effect without a restart.
const DefaultCredentialTTL = 5 * time.Minute

// CredentialResolver resolves a provider's API key at dispatch time.
//
// Precedence, highest first:
//  1. per-run overrides supplied with the request
//  2. environment variable (ANTHROPIC_API_KEY for "anthropic", etc.)
//  3. SecretStore lookup, cached for the configured TTL
//
// When all three miss, Resolve returns a MissingCredential error. The
// resolved key only ever reaches the adapter call; it is never stored
// on the request, logged, or embedded in error messages.
type CredentialResolver struct {
	store  credstore.SecretStore
	cache  *credstore.MemoryStore
	lookup func(string) string
}

// ResolverOption configures a CredentialResolver.
type ResolverOption func(*CredentialResolver)

// WithCredentialTTL sets the cache lifetime for SecretStore lookups.
func WithCredentialTTL(ttl time.Duration) ResolverOption {
	return func(r *CredentialResolver) { r.cache = credstore.NewMemoryStore(ttl) }
}

// WithEnvLookup replaces the environment lookup function, for tests.
func WithEnvLookup(fn func(string) string) ResolverOption {
	return func(r *CredentialResolver) { r.lookup = fn }
}

// NewCredentialResolver builds a resolver over an optional SecretStore.
// A nil store leaves only overrides and the environment as sources.
func NewCredentialResolver(store credstore.SecretStore, opts ...ResolverOption) *CredentialResolver {
	r := &CredentialResolver{
		store:  store,
		cache:  credstore.NewMemoryStore(DefaultCredentialTTL),
		lookup: os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnvVarName maps a provider id to its conventional environment
// variable: upper-cased, non-alphanumerics folded to underscores, with
// an _API_KEY suffix ("anthropic" -> "ANTHROPIC_API_KEY").
func EnvVarName(provider string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(provider) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	sb.WriteString("_API_KEY")
	return sb.String()
}

// Resolve returns the API key for provider, applying the source
// precedence. The error for a miss names the provider and the
// environment variable consulted, nothing more.
func (r *CredentialResolver) Resolve(ctx context.Context, provider string, overrides map[string]string) (string, error) {
	if key, ok := overrides[provider]; ok && key != "" {
		return key, nil
	}

	envVar := EnvVarName(provider)
	if key := r.lookup(envVar); key != "" {
		return key, nil
	}

	if r.store != nil {
		if key, err := r.cache.Get(ctx, provider); err == nil {
			return key, nil
		}
		key, err := r.store.Get(ctx, provider)
		if err == nil && key != "" {
			// Cache failures are not worth failing the dispatch over.
			_ = r.cache.Set(ctx, provider, key)
			return key, nil
		}
		if err != nil && !errors.Is(err, credstore.ErrNotFound) {
			return "", &DispatchError{
				Kind:    KindInternal,
				Message: fmt.Sprintf("secret store lookup failed for provider %q", provider),
				Cause:   err,
			}
		}
	}

	return "", Errorf(KindMissingCredential,
		"no API key for provider %q: set %s or store a key", provider, envVar)
}
