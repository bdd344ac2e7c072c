package dispatch

import (
	"context"
	"sync"

	"github.com/nodecanvas/mediagraph/flow"
)

// MockResult scripts one Generate call of a MockAdapter.
type MockResult struct {
	Outputs map[string][]flow.Value
	Usage   flow.Usage
	Err     error
}

// MockCall records a single Generate invocation, including the
// credential the dispatcher resolved for it.
type MockCall struct {
	Request    flow.Request
	Credential string
}

// MockAdapter is a test Adapter with scripted results and call history.
//
// Each call consumes the next entry of Script; once the script is
// exhausted the final entry repeats. An empty script succeeds with
// Outputs/Usage. Thread-safe.
//
// Example:
//
//	mock := &dispatch.MockAdapter{
//	    Script: []dispatch.MockResult{
//	        {Err: &dispatch.DispatchError{Kind: dispatch.KindRateLimited}},
//	        {Outputs: map[string][]flow.Value{"out": {flow.ImageValue("mock://img")}}},
//	    },
//	}
type MockAdapter struct {
	// Script is the sequence of results to return, in call order.
	Script []MockResult

	// Outputs and Usage are the fallback success result when Script is
	// empty.
	Outputs map[string][]flow.Value
	Usage   flow.Usage

	mu        sync.Mutex
	calls     []MockCall
	callIndex int
}

// Generate implements Adapter. The call is recorded before the scripted
// result is applied, so history covers failures too.
func (m *MockAdapter) Generate(ctx context.Context, req flow.Request, credential string) (map[string][]flow.Value, flow.Usage, error) {
	if ctx.Err() != nil {
		return nil, flow.Usage{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Request: req, Credential: credential})

	if len(m.Script) == 0 {
		return m.Outputs, m.Usage, nil
	}

	idx := m.callIndex
	if idx >= len(m.Script) {
		idx = len(m.Script) - 1
	}
	m.callIndex++

	result := m.Script[idx]
	if result.Err != nil {
		return nil, flow.Usage{}, result.Err
	}
	return result.Outputs, result.Usage, nil
}

// Calls returns a copy of the call history.
func (m *MockAdapter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Generate ran.
func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
