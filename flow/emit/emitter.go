package emit

// Emitter receives observability events from workflow execution.
//
// Implementations must be safe for concurrent use, must not block the
// run coordinator, and must not panic. A slow or failing backend should
// buffer or drop events rather than stall execution.
type Emitter interface {
	// Emit delivers one event to the configured backend.
	Emit(event Event)
}
