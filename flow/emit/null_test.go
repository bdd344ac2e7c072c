package emit

import "testing"

func TestNullEmitterDiscards(t *testing.T) {
	var _ Emitter = NewNullEmitter()

	// Must be a no-op for any event shape, including nil meta.
	emitter := NewNullEmitter()
	emitter.Emit(Event{})
	emitter.Emit(Event{RunID: "r", NodeID: "n", Status: "failed", Meta: map[string]interface{}{"error": "x"}})
}
