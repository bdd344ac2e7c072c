package dispatch

import (
	"context"

	"github.com/nodecanvas/mediagraph/flow"
)

// Adapter executes one generation request against a concrete backend.
//
// Implementations live in the provider subpackages (anthropic, openai,
// google, rest) and translate between the neutral request shape and
// their SDK's surface. Failures must be mapped onto the DispatchError
// taxonomy; Classify handles the common cases.
//
// The credential is handed in per call so adapters stay stateless about
// keys; they must not log it or embed it in errors.
type Adapter interface {
	// Generate runs the request and returns its outputs keyed by
	// output handle name, plus the backend's reported usage.
	Generate(ctx context.Context, req flow.Request, credential string) (map[string][]flow.Value, flow.Usage, error)
}

// adapterKey routes a (node type, provider) pair to one adapter.
// An empty provider entry is the default for that node type.
type adapterKey struct {
	nodeType flow.NodeType
	provider string
}
