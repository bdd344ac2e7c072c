package flow

import "errors"

// ErrNoDispatcher indicates the runner was constructed without a
// dispatcher and a generative node was reached.
var ErrNoDispatcher = errors.New("no dispatcher configured")

// ErrUnknownScopeNode indicates a run scope referenced a node id that
// does not exist in the graph.
var ErrUnknownScopeNode = errors.New("scope references unknown node id")

// InvalidGraphError is returned by Run when validation fails. The run
// never starts; Result carries every finding for the caller to surface.
type InvalidGraphError struct {
	Result ValidationResult
}

func (e *InvalidGraphError) Error() string {
	if len(e.Result.Errors) == 1 {
		return "invalid graph: " + e.Result.Errors[0].Error()
	}
	return "invalid graph"
}

// InternalError marks a programming-invariant violation observed after
// validation supposedly passed (a node referencing a handle that does
// not exist, a state transition out of a terminal state). Unlike
// dispatch failures it aborts the run instead of being absorbed into a
// node state.
type InternalError struct {
	Message string
	NodeID  string
}

func (e *InternalError) Error() string {
	if e.NodeID != "" {
		return "internal: node " + e.NodeID + ": " + e.Message
	}
	return "internal: " + e.Message
}
