package flow

import "sync"

// Usage is the resource accounting one generation call reports back:
// token counts for text backends, credits for image/video backends.
// Backends that report nothing contribute zero values.
type Usage struct {
	InputTokens  int     `json:"inputTokens,omitempty"`
	OutputTokens int     `json:"outputTokens,omitempty"`
	Credits      float64 `json:"credits,omitempty"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Credits += other.Credits
}

// UsageTracker aggregates per-model usage across the dispatches of one
// or more runs. Safe for concurrent use; the dispatch layer records
// into it from worker goroutines.
type UsageTracker struct {
	mu      sync.Mutex
	byModel map[string]Usage
	total   Usage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byModel: make(map[string]Usage)}
}

// Record accumulates one dispatch's usage under its model name.
func (t *UsageTracker) Record(model string, u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.byModel[model]
	m.Add(u)
	t.byModel[model] = m
	t.total.Add(u)
}

// Total returns the accumulated usage across all models.
func (t *UsageTracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ByModel returns a copy of the per-model usage table.
func (t *UsageTracker) ByModel() map[string]Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Usage, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v
	}
	return out
}
