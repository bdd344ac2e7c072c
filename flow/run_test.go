package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nodecanvas/mediagraph/flow"
)

// stubDispatcher records dispatch order and returns canned outputs, so
// scheduler tests run without any backend wiring.
type stubDispatcher struct {
	mu    sync.Mutex
	order []string

	// fail maps node ids to the error their dispatch should return.
	fail map[string]error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req flow.Request) (map[string][]flow.Value, error) {
	s.mu.Lock()
	s.order = append(s.order, req.NodeID)
	s.mu.Unlock()

	if err := s.fail[req.NodeID]; err != nil {
		return nil, err
	}
	return stubOutputs(req), nil
}

func stubOutputs(req flow.Request) map[string][]flow.Value {
	switch req.NodeType {
	case flow.NodeOutput:
		return map[string][]flow.Value{}
	case flow.NodePrompt, flow.NodeGenerateText:
		return map[string][]flow.Value{"out": {flow.TextValue("stub text from " + req.NodeID)}}
	case flow.NodeGenerateVideo:
		return map[string][]flow.Value{"out": {flow.VideoValue("stub://" + req.NodeID)}}
	default:
		return map[string][]flow.Value{"out": {flow.ImageValue("stub://" + req.NodeID)}}
	}
}

func (s *stubDispatcher) indexOf(nodeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.order {
		if id == nodeID {
			return i
		}
	}
	return -1
}

func mustRun(t *testing.T, r *flow.Runner, g *flow.Graph, opts ...flow.RunOption) map[string]flow.ExecutionState {
	t.Helper()
	run, err := r.Run(context.Background(), g, opts...)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	states, err := run.Wait()
	if err != nil {
		t.Fatalf("run aborted: %v", err)
	}
	return states
}

func TestRunEndToEnd(t *testing.T) {
	stub := &stubDispatcher{}
	runner := flow.NewRunner(stub)

	states := mustRun(t, runner, pipeline())

	for _, id := range []string{"in1", "p1", "gi", "out1"} {
		st, ok := states[id]
		if !ok {
			t.Fatalf("node %q missing from final states", id)
		}
		if st.Status != flow.StatusSucceeded {
			t.Errorf("node %q status = %q, want %q", id, st.Status, flow.StatusSucceeded)
		}
	}

	// Dispatch order must respect dependencies.
	gi := stub.indexOf("gi")
	if in1 := stub.indexOf("in1"); in1 > gi {
		t.Errorf("in1 dispatched at %d, after gi at %d", in1, gi)
	}
	if p1 := stub.indexOf("p1"); p1 > gi {
		t.Errorf("p1 dispatched at %d, after gi at %d", p1, gi)
	}
	if out1 := stub.indexOf("out1"); out1 < gi {
		t.Errorf("out1 dispatched at %d, before gi at %d", out1, gi)
	}

	// Generated values must flow downstream.
	if got := states["gi"].Outputs["out"]; len(got) != 1 || got[0].URI != "stub://gi" {
		t.Errorf("gi outputs = %v, want single stub://gi", got)
	}
}

func TestRunNodesWithoutEdgesAreImmediatelyReady(t *testing.T) {
	g := &flow.Graph{Nodes: []flow.Node{
		node("p1", flow.NodePrompt),
		node("p2", flow.NodePrompt),
		node("p3", flow.NodePrompt),
	}}
	states := mustRun(t, flow.NewRunner(&stubDispatcher{}), g)

	for id, st := range states {
		if st.Status != flow.StatusSucceeded {
			t.Errorf("node %q status = %q, want %q", id, st.Status, flow.StatusSucceeded)
		}
	}
}

func TestRunUnconnectedRequiredInputBlocks(t *testing.T) {
	g := pipeline()
	// Drop the prompt edge; gi's required input is now unconnected.
	g.Edges = []flow.Edge{
		edge("e1", "in1", "out", "gi", "image"),
		edge("e3", "gi", "out", "out1", "image"),
	}

	states := mustRun(t, flow.NewRunner(&stubDispatcher{}), g)

	if st := states["gi"]; st.Status != flow.StatusBlocked {
		t.Errorf("gi status = %q, want %q", st.Status, flow.StatusBlocked)
	}
	if st := states["in1"]; st.Status != flow.StatusSucceeded {
		t.Errorf("in1 status = %q, want %q (rest of graph still runs)", st.Status, flow.StatusSucceeded)
	}
	if st := states["p1"]; st.Status != flow.StatusSucceeded {
		t.Errorf("p1 status = %q, want %q", st.Status, flow.StatusSucceeded)
	}
	if st := states["out1"]; st.Status != flow.StatusBlocked {
		t.Errorf("out1 status = %q, want %q (blocked transitively)", st.Status, flow.StatusBlocked)
	}
}

func TestRunFailurePropagatesAsBlocked(t *testing.T) {
	failErr := errors.New("backend exploded")
	stub := &stubDispatcher{fail: map[string]error{"gi": failErr}}

	states := mustRun(t, flow.NewRunner(stub), pipeline())

	if st := states["gi"]; st.Status != flow.StatusFailed {
		t.Fatalf("gi status = %q, want %q", st.Status, flow.StatusFailed)
	}
	if st := states["gi"]; !errors.Is(st.Err, failErr) {
		t.Errorf("gi error = %v, want %v", st.Err, failErr)
	}
	if st := states["out1"]; st.Status != flow.StatusBlocked {
		t.Errorf("out1 status = %q, want %q", st.Status, flow.StatusBlocked)
	}
	if st := states["out1"]; st.Reason == "" {
		t.Error("out1 has no blocking reason")
	}
	// A failed node never aborts the run.
	for _, id := range []string{"in1", "p1"} {
		if st := states[id]; st.Status != flow.StatusSucceeded {
			t.Errorf("node %q status = %q, want %q", id, st.Status, flow.StatusSucceeded)
		}
	}
}

func TestRunLockedGroupSkips(t *testing.T) {
	g := pipeline()
	g.Groups = []flow.Group{{ID: "g1", Locked: true, Members: []string{"p1"}}}
	stub := &stubDispatcher{}

	states := mustRun(t, flow.NewRunner(stub), g)

	if st := states["p1"]; st.Status != flow.StatusSkipped {
		t.Errorf("p1 status = %q, want %q", st.Status, flow.StatusSkipped)
	}
	if st := states["gi"]; st.Status != flow.StatusBlocked {
		t.Errorf("gi status = %q, want %q", st.Status, flow.StatusBlocked)
	}
	if st := states["out1"]; st.Status != flow.StatusBlocked {
		t.Errorf("out1 status = %q, want %q", st.Status, flow.StatusBlocked)
	}
	if st := states["in1"]; st.Status != flow.StatusSucceeded {
		t.Errorf("in1 status = %q, want %q", st.Status, flow.StatusSucceeded)
	}
	if idx := stub.indexOf("p1"); idx != -1 {
		t.Errorf("p1 was dispatched (index %d); locked members must never run", idx)
	}
}

// gateDispatcher blocks every dispatch until release is closed,
// ignoring context cancellation, to model a call that completes after
// the run was cancelled.
type gateDispatcher struct {
	started chan string
	release chan struct{}
}

func (g *gateDispatcher) Dispatch(ctx context.Context, req flow.Request) (map[string][]flow.Value, error) {
	g.started <- req.NodeID
	<-g.release
	return stubOutputs(req), nil
}

func TestRunCancelDiscardsInFlightResults(t *testing.T) {
	gate := &gateDispatcher{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	runner := flow.NewRunner(gate)

	run, err := runner.Run(context.Background(), pipeline())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// in1 and p1 have no dependencies; wait for both dispatches.
	for i := 0; i < 2; i++ {
		select {
		case <-gate.started:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for dispatches to start")
		}
	}

	run.Cancel()
	close(gate.release)

	states, err := run.Wait()
	if err != nil {
		t.Fatalf("run aborted: %v", err)
	}
	for id, st := range states {
		if st.Status != flow.StatusBlocked {
			t.Errorf("node %q status = %q, want %q after cancel", id, st.Status, flow.StatusBlocked)
		}
		if st.Reason != "run cancelled" {
			t.Errorf("node %q reason = %q, want %q", id, st.Reason, "run cancelled")
		}
	}
}

func TestRunScopeRestrictsToDependencyClosure(t *testing.T) {
	g := pipeline()
	g.Nodes = append(g.Nodes, node("x", flow.NodePrompt))

	stub := &stubDispatcher{}
	states := mustRun(t, flow.NewRunner(stub), g, flow.WithScope("gi"))

	if len(states) != 3 {
		t.Fatalf("scoped run produced %d states, want 3: %v", len(states), states)
	}
	for _, id := range []string{"in1", "p1", "gi"} {
		if st, ok := states[id]; !ok || st.Status != flow.StatusSucceeded {
			t.Errorf("node %q missing or not succeeded: %+v", id, st)
		}
	}
	for _, id := range []string{"out1", "x"} {
		if _, ok := states[id]; ok {
			t.Errorf("node %q executed outside scope", id)
		}
	}
}

func TestRunUnknownScopeNode(t *testing.T) {
	_, err := flow.NewRunner(&stubDispatcher{}).Run(context.Background(), pipeline(), flow.WithScope("ghost"))
	if !errors.Is(err, flow.ErrUnknownScopeNode) {
		t.Fatalf("err = %v, want ErrUnknownScopeNode", err)
	}
}

func TestRunRejectsInvalidGraph(t *testing.T) {
	g := &flow.Graph{
		Nodes: []flow.Node{node("a", flow.NodeSplit), node("b", flow.NodeSplit)},
		Edges: []flow.Edge{
			edge("e1", "a", "out", "b", "image"),
			edge("e2", "b", "out", "a", "image"),
		},
	}
	_, err := flow.NewRunner(&stubDispatcher{}).Run(context.Background(), g)
	var igErr *flow.InvalidGraphError
	if !errors.As(err, &igErr) {
		t.Fatalf("err = %v, want *InvalidGraphError", err)
	}
	if igErr.Result.Errors[0].Kind != flow.ErrorKindCycle {
		t.Errorf("kind = %q, want %q", igErr.Result.Errors[0].Kind, flow.ErrorKindCycle)
	}
}

func TestRunNilDispatcher(t *testing.T) {
	g := &flow.Graph{Nodes: []flow.Node{node("p1", flow.NodePrompt)}}
	states := mustRun(t, flow.NewRunner(nil), g)

	st := states["p1"]
	if st.Status != flow.StatusFailed {
		t.Fatalf("p1 status = %q, want %q", st.Status, flow.StatusFailed)
	}
	if !errors.Is(st.Err, flow.ErrNoDispatcher) {
		t.Errorf("p1 error = %v, want ErrNoDispatcher", st.Err)
	}
}

func TestRunWatchStreamsTransitions(t *testing.T) {
	run, err := flow.NewRunner(&stubDispatcher{}).Run(context.Background(), pipeline())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := run.Wait(); err != nil {
		t.Fatalf("run aborted: %v", err)
	}

	final := make(map[string]flow.Status)
	for tr := range run.Watch() {
		final[tr.NodeID] = tr.To
	}
	for _, id := range []string{"in1", "p1", "gi", "out1"} {
		if final[id] != flow.StatusSucceeded {
			t.Errorf("last transition for %q = %q, want %q", id, final[id], flow.StatusSucceeded)
		}
	}
}

func TestRunSnapshotIsolatesCallerMutations(t *testing.T) {
	gate := &gateDispatcher{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	g := pipeline()
	run, err := flow.NewRunner(gate).Run(context.Background(), g)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Mutating the caller's graph mid-run must not affect execution.
	<-gate.started
	g.Nodes[2].Data.Model = "changed-after-start"
	g.Edges = nil
	close(gate.release)

	states, err := run.Wait()
	if err != nil {
		t.Fatalf("run aborted: %v", err)
	}
	for id, st := range states {
		if st.Status != flow.StatusSucceeded {
			t.Errorf("node %q status = %q, want %q", id, st.Status, flow.StatusSucceeded)
		}
	}
}
