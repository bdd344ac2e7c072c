// Package dispatch executes ready nodes against generation backends.
//
// The Dispatcher implements flow.Dispatcher. Non-generative node types
// (input, prompt, annotate, split, output) are evaluated locally;
// generative types are routed to a registered Adapter by (node type,
// provider), with credential resolution, per-type timeout ceilings, and
// bounded retries for transient failures.
package dispatch

import (
	"context"
	"time"

	"github.com/nodecanvas/mediagraph/flow"
)

// Dispatcher routes requests to backend adapters. Immutable after New
// and safe for concurrent use.
type Dispatcher struct {
	resolver     *CredentialResolver
	adapters     map[adapterKey]Adapter
	retry        RetryPolicy
	timeout      time.Duration
	videoTimeout time.Duration
	metrics      *flow.PrometheusMetrics
	usage        *flow.UsageTracker
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithResolver replaces the credential resolver. The default resolves
// from per-run overrides and the environment only.
func WithResolver(r *CredentialResolver) DispatcherOption {
	return func(d *Dispatcher) { d.resolver = r }
}

// WithAdapter registers an adapter for a node type and provider id.
// An empty provider makes the adapter the default for that node type.
func WithAdapter(t flow.NodeType, provider string, a Adapter) DispatcherOption {
	return func(d *Dispatcher) { d.adapters[adapterKey{t, provider}] = a }
}

// WithRetryPolicy replaces the transient-failure retry policy.
func WithRetryPolicy(p RetryPolicy) DispatcherOption {
	return func(d *Dispatcher) { d.retry = p }
}

// WithTimeout sets the dispatch ceiling for non-video node types.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithVideoTimeout sets the dispatch ceiling for video generation.
func WithVideoTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.videoTimeout = timeout }
}

// WithMetrics records retry counts to Prometheus.
func WithMetrics(m *flow.PrometheusMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithUsageTracker accumulates backend-reported usage per model.
func WithUsageTracker(t *flow.UsageTracker) DispatcherOption {
	return func(d *Dispatcher) { d.usage = t }
}

// New builds a Dispatcher.
//
// Example:
//
//	d := dispatch.New(
//	    dispatch.WithResolver(dispatch.NewCredentialResolver(store)),
//	    dispatch.WithAdapter(flow.NodeGenerateText, "anthropic", anthropicadapter.New()),
//	    dispatch.WithAdapter(flow.NodeGenerateImage, "openai", openaiadapter.NewImage()),
//	)
func New(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		adapters:     make(map[adapterKey]Adapter),
		retry:        DefaultRetryPolicy(),
		timeout:      DefaultTimeout,
		videoTimeout: VideoTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.resolver == nil {
		d.resolver = NewCredentialResolver(nil)
	}
	if d.retry.MaxAttempts < 1 {
		d.retry.MaxAttempts = 1
	}
	return d
}

// Dispatch implements flow.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req flow.Request) (map[string][]flow.Value, error) {
	if !req.NodeType.Generative() {
		return evalLocal(req)
	}
	return d.dispatchBackend(ctx, req)
}

func (d *Dispatcher) dispatchBackend(ctx context.Context, req flow.Request) (map[string][]flow.Value, error) {
	provider := req.Config.Provider
	adapter, ok := d.adapters[adapterKey{req.NodeType, provider}]
	if !ok {
		adapter, ok = d.adapters[adapterKey{req.NodeType, ""}]
	}
	if !ok {
		return nil, Errorf(KindInvalidInput,
			"no adapter registered for node type %q provider %q", req.NodeType, provider)
	}

	credential, err := d.resolver.Resolve(ctx, provider, req.CredentialOverrides)
	if err != nil {
		return nil, err
	}

	timeout := timeoutFor(req.NodeType, d.timeout, d.videoTimeout)

	var lastErr *DispatchError
	for attempt := 0; attempt < d.retry.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		outputs, usage, err := adapter.Generate(callCtx, req, credential)
		cancel()

		if err == nil {
			if d.usage != nil {
				d.usage.Record(req.Config.Model, usage)
			}
			return outputs, nil
		}

		// A cancelled run must not look like a backend failure.
		if ctx.Err() != nil {
			return nil, &DispatchError{
				Kind:    KindCancelled,
				Message: "run cancelled",
				Cause:   ctx.Err(),
			}
		}

		lastErr = Classify(provider, err)
		if !lastErr.Retryable() || attempt == d.retry.MaxAttempts-1 {
			return nil, lastErr
		}

		wait := lastErr.RetryAfter
		if wait <= 0 {
			wait = d.retry.backoff(attempt)
		}
		if d.metrics != nil {
			d.metrics.IncrementRetries(req.RunID, req.NodeID, string(lastErr.Kind))
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, &DispatchError{
				Kind:    KindCancelled,
				Message: "run cancelled during retry wait",
				Cause:   err,
			}
		}
	}
	return nil, lastErr
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// evalLocal executes the node types that never touch a backend.
func evalLocal(req flow.Request) (map[string][]flow.Value, error) {
	switch req.NodeType {
	case flow.NodeInput:
		if req.Config.Asset == nil {
			return nil, Errorf(KindInvalidInput, "input node %s has no asset", req.NodeID)
		}
		asset := *req.Config.Asset
		if asset.Kind == "" {
			asset.Kind = flow.KindImage
		}
		return map[string][]flow.Value{"out": {asset}}, nil

	case flow.NodePrompt:
		if req.Config.Text == "" {
			return nil, Errorf(KindInvalidInput, "prompt node %s has no text", req.NodeID)
		}
		return map[string][]flow.Value{"out": {flow.TextValue(req.Config.Text)}}, nil

	case flow.NodeAnnotate:
		images := req.Inputs["image"]
		if len(images) == 0 {
			return nil, Errorf(KindInvalidInput, "annotate node %s has no image input", req.NodeID)
		}
		// Compositing the note onto the pixels is a canvas concern;
		// execution forwards the asset reference.
		return map[string][]flow.Value{"out": {images[0]}}, nil

	case flow.NodeSplit:
		images := req.Inputs["image"]
		if len(images) == 0 {
			return nil, Errorf(KindInvalidInput, "split node %s has no image input", req.NodeID)
		}
		return map[string][]flow.Value{"out": {images[0]}}, nil

	case flow.NodeOutput:
		// Output nodes collect final results; their state mirrors the
		// collected inputs per handle.
		outputs := make(map[string][]flow.Value, len(req.Inputs))
		for handle, values := range req.Inputs {
			copied := make([]flow.Value, len(values))
			copy(copied, values)
			outputs[handle] = copied
		}
		return outputs, nil
	}

	return nil, Errorf(KindInternal, "unhandled node type %q", req.NodeType)
}
