package flow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nodecanvas/mediagraph/flow/emit"
)

// DefaultConcurrency bounds simultaneous dispatches when no limit is
// configured. Generation backends are rate limited well below this on
// free tiers; raise it per deployment.
const DefaultConcurrency = 4

// Request is one dispatch of a ready node: everything the provider
// layer needs to execute the node against a backend.
type Request struct {
	// RunID identifies the owning run, for observability only.
	RunID string

	// NodeID and NodeType identify the node being executed.
	NodeID   string
	NodeType NodeType

	// Config is the node's variant-specific configuration.
	Config NodeData

	// Inputs holds the already-collected values of the node's input
	// handles, keyed by handle name, in upstream edge order. Optional
	// handles whose producers did not succeed are simply absent.
	Inputs map[string][]Value

	// CredentialOverrides are per-run provider keys supplied by the
	// caller. They take precedence over every other credential source.
	CredentialOverrides map[string]string
}

// Dispatcher executes a single ready node. Implementations own backend
// selection, credential resolution, timeouts, and retries; the scheduler
// only sees the normalized outputs or error.
//
// The production implementation lives in flow/dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (map[string][]Value, error)
}

// Runner executes graphs. A Runner is immutable after construction and
// safe for concurrent use; each Run gets its own state table.
type Runner struct {
	dispatcher  Dispatcher
	emitter     emit.Emitter
	metrics     *PrometheusMetrics
	concurrency int
}

// Option configures a Runner.
type Option func(*Runner)

// WithEmitter directs per-node state transitions to an observability
// emitter. Nil restores the default (no emission).
func WithEmitter(e emit.Emitter) Option {
	return func(r *Runner) { r.emitter = e }
}

// WithMetrics enables Prometheus metrics collection for runs.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithConcurrency sets the worker pool bound for dispatches. Values
// below 1 fall back to DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// NewRunner builds a Runner around a dispatcher.
//
// Example:
//
//	d := dispatch.New(dispatch.WithResolver(resolver))
//	runner := flow.NewRunner(d,
//	    flow.WithConcurrency(8),
//	    flow.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	)
//	run, err := runner.Run(ctx, graph)
func NewRunner(d Dispatcher, opts ...Option) *Runner {
	r := &Runner{
		dispatcher:  d,
		emitter:     emit.NewNullEmitter(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = DefaultConcurrency
	}
	if r.emitter == nil {
		r.emitter = emit.NewNullEmitter()
	}
	return r
}

// runConfig collects per-run options before the run starts.
type runConfig struct {
	runID       string
	scope       []string
	creds       map[string]string
	concurrency int
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// WithScope restricts execution to the given node ids plus everything
// they transitively depend on. An empty scope executes the full graph.
func WithScope(nodeIDs ...string) RunOption {
	return func(c *runConfig) { c.scope = nodeIDs }
}

// WithCredentialOverrides supplies per-provider keys that outrank every
// other credential source for the duration of this run.
func WithCredentialOverrides(creds map[string]string) RunOption {
	return func(c *runConfig) { c.creds = creds }
}

// WithRunConcurrency overrides the runner's worker pool bound for this
// run only.
func WithRunConcurrency(n int) RunOption {
	return func(c *runConfig) { c.concurrency = n }
}

// Run validates the graph and starts executing it asynchronously.
//
// Validation failures are returned immediately as *InvalidGraphError
// and nothing runs. One exception: required input handles with no
// incoming edge do not prevent the run; the affected nodes are seeded
// Blocked so the rest of the graph still executes.
//
// The returned Run exposes Watch for state transitions, Cancel, and
// Wait for the final per-node state map. The graph is snapshotted, so
// callers may keep mutating their copy while the run proceeds.
func (r *Runner) Run(ctx context.Context, g *Graph, opts ...RunOption) (*Run, error) {
	cfg := runConfig{concurrency: r.concurrency}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = r.concurrency
	}

	result := Validate(g)
	if !result.OK && result.structural() {
		return nil, &InvalidGraphError{Result: result}
	}

	snap, err := snapshot(g)
	if err != nil {
		return nil, err
	}
	ix := buildIndex(snap)

	scope, err := resolveScope(ix, cfg.scope)
	if err != nil {
		return nil, err
	}

	// Required inputs with no edge degrade to Blocked seeds.
	unsat := make(map[string]bool)
	for _, verr := range result.Errors {
		if verr.Kind == ErrorKindUnsatisfiableInput {
			unsat[verr.NodeID] = true
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:          cfg.runID,
		runner:      r,
		graph:       snap,
		ix:          ix,
		scope:       scope,
		unsat:       unsat,
		creds:       cfg.creds,
		concurrency: cfg.concurrency,
		cancel:      cancel,
		states:      make(map[string]*ExecutionState, len(scope)),
		// Each node transitions at most four times; sized so the
		// coordinator never blocks on an unread watcher.
		events: make(chan Transition, 4*len(scope)+8),
		done:   make(chan struct{}),
	}
	go run.execute(runCtx)
	return run, nil
}

// resolveScope expands a selection to its dependency closure: the
// selected nodes plus everything they transitively depend on. A nil or
// empty selection covers the whole graph.
func resolveScope(ix *index, selected []string) (map[string]bool, error) {
	scope := make(map[string]bool)
	if len(selected) == 0 {
		for id := range ix.nodes {
			scope[id] = true
		}
		return scope, nil
	}
	stack := make([]string, 0, len(selected))
	for _, id := range selected {
		if _, ok := ix.nodes[id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScopeNode, id)
		}
		stack = append(stack, id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if scope[id] {
			continue
		}
		scope[id] = true
		for _, e := range ix.incoming[id] {
			stack = append(stack, e.Source)
		}
	}
	return scope, nil
}

// sortedScope returns the scoped node ids in sorted order so seeding is
// deterministic.
func sortedScope(scope map[string]bool) []string {
	ids := make([]string, 0, len(scope))
	for id := range scope {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
