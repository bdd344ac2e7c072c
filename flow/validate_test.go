package flow_test

import (
	"testing"

	"github.com/nodecanvas/mediagraph/flow"
)

// Test graph builders shared across this package's tests.

func node(id string, t flow.NodeType) flow.Node {
	n := flow.Node{ID: id, Type: t}
	switch t {
	case flow.NodeInput:
		asset := flow.ImageValue("asset://" + id)
		n.Data.Asset = &asset
	case flow.NodePrompt:
		n.Data.Text = "prompt text for " + id
	}
	return n
}

func edge(id, source, sourceHandle, target, targetHandle string) flow.Edge {
	return flow.Edge{
		ID:           id,
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
}

// pipeline builds the canonical four node graph:
// input and prompt feeding generate-image feeding output.
func pipeline() *flow.Graph {
	return &flow.Graph{
		Nodes: []flow.Node{
			node("in1", flow.NodeInput),
			node("p1", flow.NodePrompt),
			node("gi", flow.NodeGenerateImage),
			node("out1", flow.NodeOutput),
		},
		Edges: []flow.Edge{
			edge("e1", "in1", "out", "gi", "image"),
			edge("e2", "p1", "out", "gi", "prompt"),
			edge("e3", "gi", "out", "out1", "image"),
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid pipeline passes", func(t *testing.T) {
		result := flow.Validate(pipeline())
		if !result.OK {
			t.Fatalf("expected OK, got errors: %v", result.Errors)
		}
		if len(result.Errors) != 0 {
			t.Errorf("expected no errors, got %d", len(result.Errors))
		}
	})

	t.Run("unknown node type", func(t *testing.T) {
		g := &flow.Graph{Nodes: []flow.Node{{ID: "x", Type: "teleport"}}}
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if result.Errors[0].Kind != flow.ErrorKindBadNode {
			t.Errorf("kind = %q, want %q", result.Errors[0].Kind, flow.ErrorKindBadNode)
		}
	})

	t.Run("duplicate node id", func(t *testing.T) {
		g := &flow.Graph{Nodes: []flow.Node{
			node("dup", flow.NodePrompt),
			node("dup", flow.NodePrompt),
		}}
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if result.Errors[0].Kind != flow.ErrorKindBadNode {
			t.Errorf("kind = %q, want %q", result.Errors[0].Kind, flow.ErrorKindBadNode)
		}
		if result.Errors[0].NodeID != "dup" {
			t.Errorf("node id = %q, want %q", result.Errors[0].NodeID, "dup")
		}
	})

	t.Run("edge to missing node", func(t *testing.T) {
		g := pipeline()
		g.Edges = append(g.Edges, edge("bad", "gi", "out", "ghost", "image"))
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if result.Errors[0].Kind != flow.ErrorKindBadEndpoint {
			t.Errorf("kind = %q, want %q", result.Errors[0].Kind, flow.ErrorKindBadEndpoint)
		}
		if result.Errors[0].EdgeID != "bad" {
			t.Errorf("edge id = %q, want %q", result.Errors[0].EdgeID, "bad")
		}
	})

	t.Run("edge to unknown handle", func(t *testing.T) {
		g := pipeline()
		g.Edges[0].TargetHandle = "mask"
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if result.Errors[0].Kind != flow.ErrorKindBadEndpoint {
			t.Errorf("kind = %q, want %q", result.Errors[0].Kind, flow.ErrorKindBadEndpoint)
		}
	})

	t.Run("kind mismatches are all collected", func(t *testing.T) {
		g := pipeline()
		// Swap the two edges into gi so both carry the wrong kind.
		g.Edges[0].TargetHandle = "prompt" // image output into text input
		g.Edges[1].TargetHandle = "image"  // text output into image input
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if len(result.Errors) != 2 {
			t.Fatalf("expected 2 errors, got %d: %v", len(result.Errors), result.Errors)
		}
		for _, e := range result.Errors {
			if e.Kind != flow.ErrorKindKindMismatch {
				t.Errorf("kind = %q, want %q", e.Kind, flow.ErrorKindKindMismatch)
			}
		}
	})

	t.Run("single multiplicity violated", func(t *testing.T) {
		g := &flow.Graph{
			Nodes: []flow.Node{
				node("in1", flow.NodeInput),
				node("in2", flow.NodeInput),
				node("an", flow.NodeAnnotate),
			},
			Edges: []flow.Edge{
				edge("e1", "in1", "out", "an", "image"),
				edge("e2", "in2", "out", "an", "image"),
			},
		}
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if result.Errors[0].Kind != flow.ErrorKindMultiplicity {
			t.Errorf("kind = %q, want %q", result.Errors[0].Kind, flow.ErrorKindMultiplicity)
		}
		if result.Errors[0].NodeID != "an" {
			t.Errorf("node id = %q, want %q", result.Errors[0].NodeID, "an")
		}
	})

	t.Run("cycle reports the nodes on it", func(t *testing.T) {
		g := &flow.Graph{
			Nodes: []flow.Node{
				node("a", flow.NodeSplit),
				node("b", flow.NodeSplit),
				node("c", flow.NodeSplit),
			},
			Edges: []flow.Edge{
				edge("e1", "a", "out", "b", "image"),
				edge("e2", "b", "out", "c", "image"),
				edge("e3", "c", "out", "a", "image"),
			},
		}
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		verr := result.Errors[0]
		if verr.Kind != flow.ErrorKindCycle {
			t.Fatalf("kind = %q, want %q", verr.Kind, flow.ErrorKindCycle)
		}
		want := map[string]bool{"a": true, "b": true, "c": true}
		if len(verr.Cycle) != 3 {
			t.Fatalf("cycle = %v, want all of a, b, c", verr.Cycle)
		}
		for _, id := range verr.Cycle {
			if !want[id] {
				t.Errorf("unexpected node %q in cycle %v", id, verr.Cycle)
			}
		}
	})

	t.Run("required input without edge is reported", func(t *testing.T) {
		g := &flow.Graph{
			Nodes: []flow.Node{node("gi", flow.NodeGenerateImage)},
		}
		result := flow.Validate(g)
		if result.OK {
			t.Fatal("expected validation failure")
		}
		if result.Errors[0].Kind != flow.ErrorKindUnsatisfiableInput {
			t.Errorf("kind = %q, want %q", result.Errors[0].Kind, flow.ErrorKindUnsatisfiableInput)
		}
		if result.Errors[0].NodeID != "gi" {
			t.Errorf("node id = %q, want %q", result.Errors[0].NodeID, "gi")
		}
	})

	t.Run("locked node exempt from required input check", func(t *testing.T) {
		g := &flow.Graph{
			Nodes:  []flow.Node{node("gi", flow.NodeGenerateImage)},
			Groups: []flow.Group{{ID: "g1", Locked: true, Members: []string{"gi"}}},
		}
		result := flow.Validate(g)
		if !result.OK {
			t.Fatalf("expected OK, got errors: %v", result.Errors)
		}
	})
}
