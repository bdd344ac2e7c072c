package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a dispatch failure. The retry policy keys off
// the kind, not the message.
type ErrorKind string

const (
	// KindMissingCredential means no API key could be resolved for the
	// node's provider. Never retried.
	KindMissingCredential ErrorKind = "missing_credential"

	// KindInvalidInput means the node's configuration or collected
	// inputs cannot form a valid backend request. Never retried.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindUnauthorized means the backend rejected the credential.
	// Never retried; retrying a bad key just burns quota.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindRateLimited means the backend throttled the request.
	// Retried, honoring RetryAfter when the backend supplied one.
	KindRateLimited ErrorKind = "rate_limited"

	// KindBackendUnavailable covers 5xx responses, timeouts, and
	// network failures. Retried with exponential backoff.
	KindBackendUnavailable ErrorKind = "backend_unavailable"

	// KindMalformedResponse means the backend answered but the payload
	// could not be interpreted. Never retried.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindCancelled means the run's context was cancelled.
	KindCancelled ErrorKind = "cancelled"

	// KindInternal marks a bug in the dispatch layer itself.
	KindInternal ErrorKind = "internal"
)

// DispatchError is the normalized failure surface of the dispatch
// layer. Messages never contain credential material.
type DispatchError struct {
	Kind    ErrorKind
	Message string

	// RetryAfter is the backend-suggested wait for rate limits.
	// Zero when the backend gave no hint.
	RetryAfter time.Duration

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether this failure kind may be retried.
func (e *DispatchError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindBackendUnavailable:
		return true
	}
	return false
}

// Errorf builds a DispatchError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *DispatchError {
	return &DispatchError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsDispatchError extracts a *DispatchError from err's chain, or nil.
func AsDispatchError(err error) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// Classify normalizes an arbitrary backend error into a DispatchError.
// Adapters use it as the fallback after checking their SDK's typed
// errors. SDK error strings carry status codes and token fragments but
// never the request credential, so passing them through is safe.
func Classify(provider string, err error) *DispatchError {
	if err == nil {
		return nil
	}
	if de := AsDispatchError(err); de != nil {
		return de
	}
	if errors.Is(err, context.Canceled) {
		return &DispatchError{Kind: KindCancelled, Message: "request cancelled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DispatchError{
			Kind:    KindBackendUnavailable,
			Message: fmt.Sprintf("%s request timed out", provider),
			Cause:   err,
		}
	}

	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "incorrect api key") ||
		strings.Contains(lower, "authentication"):
		return &DispatchError{
			Kind:    KindUnauthorized,
			Message: fmt.Sprintf("%s rejected the API key", provider),
			Cause:   err,
		}

	case strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests"):
		return &DispatchError{
			Kind:    KindRateLimited,
			Message: fmt.Sprintf("%s rate limit exceeded", provider),
			Cause:   err,
		}

	case strings.Contains(lower, "quota") ||
		strings.Contains(lower, "billing"):
		return &DispatchError{
			Kind:    KindUnauthorized,
			Message: fmt.Sprintf("%s quota exceeded", provider),
			Cause:   err,
		}

	case strings.Contains(lower, "500") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout") ||
		strings.Contains(lower, "overloaded"):
		return &DispatchError{
			Kind:    KindBackendUnavailable,
			Message: fmt.Sprintf("%s server error", provider),
			Cause:   err,
		}

	case strings.Contains(lower, "connection") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "network"):
		return &DispatchError{
			Kind:    KindBackendUnavailable,
			Message: fmt.Sprintf("%s unreachable", provider),
			Cause:   err,
		}
	}

	return &DispatchError{
		Kind:    KindInternal,
		Message: fmt.Sprintf("%s call failed: %v", provider, err),
		Cause:   err,
	}
}
