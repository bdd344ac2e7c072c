package flow

// Value is one payload flowing through a handle: authored or generated
// text, or a reference to a media asset. Generated media is carried by
// URI (and optionally inline bytes); this keeps state tables and
// summaries cheap to copy and safe to serialize.
type Value struct {
	Kind HandleKind `json:"kind"`

	// Text holds the payload for KindText values.
	Text string `json:"text,omitempty"`

	// URI locates the asset for KindImage and KindVideo values.
	URI string `json:"uri,omitempty"`

	// Data optionally carries the asset inline (small previews,
	// base64-decoded generation results).
	Data []byte `json:"data,omitempty"`

	// MIME is the asset content type when known.
	MIME string `json:"mime,omitempty"`
}

// TextValue builds a KindText value.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// ImageValue builds a KindImage value referencing uri.
func ImageValue(uri string) Value { return Value{Kind: KindImage, URI: uri} }

// VideoValue builds a KindVideo value referencing uri.
func VideoValue(uri string) Value { return Value{Kind: KindVideo, URI: uri} }

// Status is the execution state of a single node within a run.
type Status string

const (
	// StatusPending nodes have unresolved upstream producers.
	StatusPending Status = "pending"

	// StatusReady nodes have every required input satisfied and are
	// queued for dispatch.
	StatusReady Status = "ready"

	// StatusRunning nodes have an in-flight dispatch.
	StatusRunning Status = "running"

	// StatusSucceeded nodes completed and hold output values.
	StatusSucceeded Status = "succeeded"

	// StatusFailed nodes completed with a dispatch error.
	StatusFailed Status = "failed"

	// StatusBlocked nodes cannot run because an upstream required
	// producer did not succeed, or the run was cancelled first.
	StatusBlocked Status = "blocked"

	// StatusSkipped nodes belong to a locked group.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether s is a final state. A run ends when every
// scoped node is terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusBlocked, StatusSkipped:
		return true
	}
	return false
}

// ExecutionState is the per-node record of one run. It is created when
// the run starts, mutated only by the run coordinator, and discarded
// with the run; nothing here persists across runs.
type ExecutionState struct {
	Status Status `json:"status"`

	// Outputs maps output handle name to produced values. Populated
	// only for StatusSucceeded.
	Outputs map[string][]Value `json:"outputs,omitempty"`

	// Err is the dispatch error for StatusFailed.
	Err error `json:"-"`

	// Reason explains StatusBlocked and StatusSkipped.
	Reason string `json:"reason,omitempty"`
}

// clone copies the state so callers of Run.States cannot alias the
// coordinator's table.
func (s *ExecutionState) clone() ExecutionState {
	c := ExecutionState{Status: s.Status, Err: s.Err, Reason: s.Reason}
	if s.Outputs != nil {
		c.Outputs = make(map[string][]Value, len(s.Outputs))
		for k, vs := range s.Outputs {
			c.Outputs[k] = append([]Value(nil), vs...)
		}
	}
	return c
}

// Transition is one observable state change of a node during a run,
// delivered through Run.Watch in the order the coordinator applied it.
type Transition struct {
	NodeID string
	From   Status
	To     Status

	// Err accompanies transitions to StatusFailed.
	Err error
}
