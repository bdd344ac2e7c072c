package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodecanvas/mediagraph/flow/emit"
)

// Run is the handle for one graph execution. It exposes the state
// transition stream (Watch), cooperative cancellation (Cancel), and the
// final per-node state map (Wait).
//
// All state mutation happens on the run's coordinator goroutine;
// dispatches execute on worker goroutines and report back over a
// completion channel, so readiness decisions are serialized.
type Run struct {
	// ID identifies this execution in events and metrics.
	ID string

	runner      *Runner
	graph       *Graph
	ix          *index
	scope       map[string]bool
	unsat       map[string]bool
	creds       map[string]string
	concurrency int

	cancel context.CancelFunc
	events chan Transition
	done   chan struct{}

	mu       sync.Mutex
	states   map[string]*ExecutionState
	finalErr error
}

// completion is a worker's report back to the coordinator.
type completion struct {
	nodeID  string
	outputs map[string][]Value
	err     error
}

// Watch returns the stream of node state transitions in the order the
// coordinator applied them. The channel is buffered for the whole run
// and closed when the run ends, so consumers may read at their own pace
// or not at all.
func (run *Run) Watch() <-chan Transition { return run.events }

// Cancel raises the run's cancellation signal. No new dispatches are
// issued; in-flight dispatches observe context cancellation and their
// nodes, along with every other non-terminal node, end Blocked with a
// cancellation reason. Cancel returns immediately; use Wait to observe
// completion.
func (run *Run) Cancel() { run.cancel() }

// Done is closed when the run has ended.
func (run *Run) Done() <-chan struct{} { return run.done }

// Wait blocks until the run ends and returns the final state of every
// scoped node. The error is non-nil only for internal invariant
// violations; node-level dispatch failures live in the state map.
func (run *Run) Wait() (map[string]ExecutionState, error) {
	<-run.done
	return run.States(), run.Err()
}

// States returns a copy of the current per-node states. Safe to call
// at any point during the run.
func (run *Run) States() map[string]ExecutionState {
	run.mu.Lock()
	defer run.mu.Unlock()
	out := make(map[string]ExecutionState, len(run.states))
	for id, st := range run.states {
		out[id] = st.clone()
	}
	return out
}

// Err returns the run-aborting error, if any. Dispatch failures are not
// run-aborting.
func (run *Run) Err() error {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.finalErr
}

// execute is the coordinator loop. It owns the state table for the
// duration of the run.
func (run *Run) execute(ctx context.Context) {
	defer close(run.done)
	defer run.cancel()
	defer close(run.events)

	fr := newFrontier()
	ids := sortedScope(run.scope)

	run.mu.Lock()
	for _, id := range ids {
		run.states[id] = &ExecutionState{Status: StatusPending}
	}
	run.mu.Unlock()

	// Locked-group members are skipped eagerly, before anything runs,
	// so their dependents can be blocked without waiting.
	var seeds []string
	for _, id := range ids {
		switch {
		case run.ix.locked[id]:
			run.setState(id, StatusSkipped, "member of locked group", nil, nil)
			seeds = append(seeds, id)
		case run.unsat[id]:
			run.setState(id, StatusBlocked, "required input not connected", nil, nil)
			seeds = append(seeds, id)
		}
	}
	for _, id := range seeds {
		run.reevaluateDependents(id, fr)
	}
	for _, id := range ids {
		if run.status(id) == StatusPending {
			run.evaluate(id, fr)
		}
	}

	inflight := 0
	completions := make(chan completion)
	ctxDone := ctx.Done()
	cancelled := false

	for {
		if !cancelled {
			for inflight < run.concurrency {
				id, ok := fr.pop()
				if !ok {
					break
				}
				req := run.buildRequest(id)
				run.setState(id, StatusRunning, "", nil, nil)
				inflight++
				go run.dispatchNode(ctx, req, completions)
			}
		}
		run.updateGauges(inflight, fr.len())

		if inflight == 0 {
			if cancelled || run.finalized() {
				break
			}
			if run.allTerminal() {
				break
			}
			if fr.len() == 0 {
				// Validated graphs are acyclic, so a stalled run with no
				// ready and no running nodes is a bookkeeping bug.
				run.fail(&InternalError{Message: "no runnable nodes but run incomplete"})
				break
			}
			continue
		}

		select {
		case c := <-completions:
			inflight--
			run.apply(c, fr, cancelled)
		case <-ctxDone:
			cancelled = true
			ctxDone = nil
		}
	}

	reason := "run cancelled"
	if run.finalized() {
		reason = "run aborted"
	}
	run.blockRemaining(reason)
	run.updateGauges(0, 0)
}

// evaluate decides a Pending node's next state from its producers.
// It transitions to Ready (all producers terminal, required handles
// satisfied by Succeeded producers), to Blocked (a required producer
// ended non-Succeeded), or leaves the node Pending.
func (run *Run) evaluate(id string, fr *frontier) {
	if run.status(id) != StatusPending {
		return
	}
	n := run.ix.nodes[id]
	for _, h := range InputHandles(n.Type) {
		for _, e := range run.ix.edgesInto(id, h.Name) {
			ps := run.status(e.Source)
			if !ps.Terminal() {
				return
			}
			if h.Required && ps != StatusSucceeded {
				run.setState(id, StatusBlocked,
					fmt.Sprintf("required input %q depends on node %q (%s)", h.Name, e.Source, ps),
					nil, nil)
				run.reevaluateDependents(id, fr)
				return
			}
		}
	}
	run.setState(id, StatusReady, "", nil, nil)
	fr.push(id)
}

// reevaluateDependents re-checks the direct dependents of a node that
// just reached a terminal state. Blocking a dependent re-checks its own
// dependents in turn, so skip and failure propagate transitively in one
// pass per completion.
func (run *Run) reevaluateDependents(id string, fr *frontier) {
	for _, e := range run.ix.outgoing[id] {
		if run.scope[e.Target] {
			run.evaluate(e.Target, fr)
		}
	}
}

// buildRequest collects the input values for a node from its succeeded
// producers, in edge order. Called on the coordinator before the worker
// starts, so no state is read concurrently.
func (run *Run) buildRequest(id string) Request {
	n := run.ix.nodes[id]
	inputs := make(map[string][]Value)
	run.mu.Lock()
	for _, h := range InputHandles(n.Type) {
		for _, e := range run.ix.edgesInto(id, h.Name) {
			st, ok := run.states[e.Source]
			if !ok || st.Status != StatusSucceeded {
				continue
			}
			inputs[h.Name] = append(inputs[h.Name], st.Outputs[e.SourceHandle]...)
		}
	}
	run.mu.Unlock()
	return Request{
		RunID:               run.ID,
		NodeID:              id,
		NodeType:            n.Type,
		Config:              n.Data,
		Inputs:              inputs,
		CredentialOverrides: run.creds,
	}
}

// dispatchNode runs on a worker goroutine: one dispatch, one completion.
func (run *Run) dispatchNode(ctx context.Context, req Request, ch chan<- completion) {
	start := time.Now()
	var out map[string][]Value
	var err error
	if run.runner.dispatcher == nil {
		err = ErrNoDispatcher
	} else {
		out, err = run.runner.dispatcher.Dispatch(ctx, req)
	}
	if m := run.runner.metrics; m != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.RecordDispatchLatency(run.ID, req.NodeID, time.Since(start), status)
	}
	ch <- completion{nodeID: req.NodeID, outputs: out, err: err}
}

// apply folds a completion into the state table. On a cancelled run the
// result is discarded and the node ends Blocked with the cancellation
// reason; otherwise success stores outputs and failure attaches the
// dispatch error, and dependents are re-evaluated either way.
func (run *Run) apply(c completion, fr *frontier, cancelled bool) {
	if cancelled {
		run.setState(c.nodeID, StatusBlocked, "run cancelled", nil, nil)
		return
	}
	if c.err != nil {
		run.setState(c.nodeID, StatusFailed, "", c.err, nil)
	} else {
		run.setState(c.nodeID, StatusSucceeded, "", nil, c.outputs)
	}
	run.reevaluateDependents(c.nodeID, fr)
}

// blockRemaining marks every node still non-terminal as Blocked. Called
// once at run end; a completed run has nothing left to mark.
func (run *Run) blockRemaining(reason string) {
	run.mu.Lock()
	var pending []string
	for id, st := range run.states {
		if !st.Status.Terminal() {
			pending = append(pending, id)
		}
	}
	run.mu.Unlock()
	for _, id := range pending {
		run.setState(id, StatusBlocked, reason, nil, nil)
	}
}

func (run *Run) status(id string) Status {
	run.mu.Lock()
	defer run.mu.Unlock()
	if st, ok := run.states[id]; ok {
		return st.Status
	}
	return ""
}

func (run *Run) allTerminal() bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	for _, st := range run.states {
		if !st.Status.Terminal() {
			return false
		}
	}
	return true
}

func (run *Run) finalized() bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.finalErr != nil
}

func (run *Run) fail(err error) {
	run.mu.Lock()
	if run.finalErr == nil {
		run.finalErr = err
	}
	run.mu.Unlock()
}

// setState applies one node transition, emits it, and records metrics.
// Transitions out of a terminal state indicate a coordinator bug and
// abort the run.
func (run *Run) setState(id string, to Status, reason string, err error, outputs map[string][]Value) {
	run.mu.Lock()
	st, ok := run.states[id]
	if !ok {
		run.mu.Unlock()
		run.fail(&InternalError{NodeID: id, Message: "state transition for unknown node"})
		return
	}
	from := st.Status
	if from.Terminal() {
		run.mu.Unlock()
		if from != to {
			run.fail(&InternalError{NodeID: id,
				Message: fmt.Sprintf("transition %s -> %s out of terminal state", from, to)})
		}
		return
	}
	st.Status = to
	st.Reason = reason
	st.Err = err
	if outputs != nil {
		st.Outputs = outputs
	}
	run.mu.Unlock()

	if m := run.runner.metrics; m != nil {
		m.IncrementNodeState(run.ID, string(to))
	}
	run.emitTransition(id, from, to, err, reason)
}

func (run *Run) emitTransition(id string, from, to Status, err error, reason string) {
	ev := emit.Event{
		RunID:  run.ID,
		NodeID: id,
		Status: string(to),
		Msg:    "node " + string(to),
	}
	if err != nil {
		ev.Meta = map[string]interface{}{"error": err.Error()}
	} else if reason != "" {
		ev.Meta = map[string]interface{}{"reason": reason}
	}
	run.runner.emitter.Emit(ev)

	select {
	case run.events <- Transition{NodeID: id, From: from, To: to, Err: err}:
	default:
		// The buffer is sized for the worst case; dropping here would
		// mean the sizing math is wrong, not that a consumer is slow.
	}
}

func (run *Run) updateGauges(inflight, depth int) {
	if m := run.runner.metrics; m != nil {
		m.UpdateInflightDispatches(inflight)
		m.UpdateFrontierDepth(depth)
	}
}
