package emit

import "sync"

// BufferedEmitter stores events in memory, organized by run ID, and
// offers query helpers for inspecting run history.
//
// Intended for tests, debugging, and dashboards. Everything is held in
// memory, so long-lived processes should Clear finished runs.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events in emit order
}

// HistoryFilter selects a subset of a run's events. Empty fields match
// everything; set fields combine with AND.
type HistoryFilter struct {
	NodeID string // match a specific node
	Status string // match a specific status
	Msg    string // match a specific message
}

// NewBufferedEmitter creates an empty in-memory emitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit appends the event to its run's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// GetHistory returns all events for runID in emit order. The returned
// slice is a copy; an unknown run yields an empty slice.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter returns the events for runID that match the
// filter, in emit order.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if filter.NodeID != "" && event.NodeID != filter.NodeID {
			continue
		}
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		if filter.Msg != "" && event.Msg != filter.Msg {
			continue
		}
		result = append(result, event)
	}
	return result
}

// Clear removes stored events. A non-empty runID clears that run only;
// an empty runID clears everything.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
