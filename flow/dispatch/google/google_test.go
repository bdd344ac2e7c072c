package google_test

import (
	"context"
	"testing"

	"github.com/nodecanvas/mediagraph/flow"
	"github.com/nodecanvas/mediagraph/flow/dispatch"
	"github.com/nodecanvas/mediagraph/flow/dispatch/google"
)

var _ dispatch.Adapter = (*google.Adapter)(nil)

func TestGenerateRequiresPrompt(t *testing.T) {
	a := google.New()
	_, _, err := a.Generate(context.Background(), flow.Request{
		NodeID:   "g1",
		NodeType: flow.NodeGenerateText,
	}, "test-key")

	de := dispatch.AsDispatchError(err)
	if de == nil || de.Kind != dispatch.KindInvalidInput {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}
