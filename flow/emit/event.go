// Package emit provides pluggable observability sinks for workflow runs.
//
// The runner emits one Event per node state transition. Emitters route
// those events to a backend: a log writer, an in-memory buffer for tests
// and dashboards, or OpenTelemetry spans.
package emit

// Event is one observability record from a workflow run.
//
// Events correspond to node state transitions (ready, running,
// succeeded, failed, blocked, skipped) plus run-level markers. The
// Meta map carries transition-specific detail such as error text,
// blocking reasons, or dispatch latency.
type Event struct {
	// RunID identifies the run that emitted this event.
	RunID string

	// NodeID identifies the node the event concerns.
	// Empty for run-level events.
	NodeID string

	// Status is the node status after the transition, as a string
	// ("running", "succeeded", "failed", "blocked", "skipped").
	// Empty for run-level events.
	Status string

	// Msg is a short human-readable description.
	Msg string

	// Meta holds additional structured data. Common keys:
	//   - "error": error text for failed transitions
	//   - "reason": why a node was blocked or skipped
	//   - "latency_ms": dispatch duration in milliseconds
	//   - "attempt": retry attempt number
	//   - "provider", "model": backend routing for generative nodes
	Meta map[string]interface{}
}
