package dispatch

import (
	"math/rand"
	"time"

	"github.com/nodecanvas/mediagraph/flow"
)

// Default timeout ceilings per dispatch. Video generation backends run
// long-poll jobs, so they get a much larger ceiling.
const (
	DefaultTimeout      = 60 * time.Second
	VideoTimeout        = 5 * time.Minute
	defaultMaxAttempts  = 3
	defaultRetryBase    = 1 * time.Second
	defaultRetryMaxWait = 30 * time.Second
)

// RetryPolicy bounds automatic retries of transient dispatch failures.
//
// Only RateLimited and BackendUnavailable errors are retried; the
// remaining kinds are permanent for a given request and retrying them
// just burns quota. The wait between attempts is exponential backoff
// with jitter, except that a backend-supplied RetryAfter wins.
type RetryPolicy struct {
	// MaxAttempts counts the initial attempt too. 1 disables retries.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
}

// DefaultRetryPolicy is used when no policy is configured: three
// attempts with 1s base delay capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultRetryBase,
		MaxDelay:    defaultRetryMaxWait,
	}
}

// backoff computes the wait before retry number attempt (zero-based):
// min(base * 2^attempt, maxDelay) plus jitter in [0, base) to spread
// synchronized retries apart.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBase
	}

	delay := base * (1 << attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry spacing, not security
	return delay + jitter
}

// timeoutFor returns the dispatch ceiling for a node type.
func timeoutFor(t flow.NodeType, defaultTimeout, videoTimeout time.Duration) time.Duration {
	if t == flow.NodeGenerateVideo {
		return videoTimeout
	}
	return defaultTimeout
}
