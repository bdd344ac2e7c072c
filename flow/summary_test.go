package flow_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nodecanvas/mediagraph/flow"
)

func TestSummarize(t *testing.T) {
	g := pipeline()
	g.Nodes[2].Data.Model = "dall-e-3"
	g.Nodes[3].Title = "Final frame"

	s := flow.Summarize(g)

	if len(s.Nodes) != 4 || len(s.Edges) != 3 {
		t.Fatalf("summary has %d nodes, %d edges; want 4, 3", len(s.Nodes), len(s.Edges))
	}

	byID := make(map[string]flow.NodeSummary)
	for _, n := range s.Nodes {
		byID[n.ID] = n
	}

	if got := byID["gi"].Model; got != "dall-e-3" {
		t.Errorf("gi model = %q, want %q", got, "dall-e-3")
	}
	if got := byID["in1"].Model; got != "" {
		t.Errorf("in1 model = %q, want empty (not a generation type)", got)
	}
	if got := byID["out1"].Title; got != "Final frame" {
		t.Errorf("out1 title = %q, want %q", got, "Final frame")
	}
	if got := byID["in1"].Title; got == "" {
		t.Error("in1 title empty, want a default derived from the type")
	}

	for _, e := range s.Edges {
		if e.From == "p1" && e.Kind != flow.KindText {
			t.Errorf("edge from p1 kind = %q, want %q", e.Kind, flow.KindText)
		}
		if e.From == "gi" && e.Kind != flow.KindImage {
			t.Errorf("edge from gi kind = %q, want %q", e.Kind, flow.KindImage)
		}
	}

	// Summaries must never leak payloads.
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("summary not serializable: %v", err)
	}
	if strings.Contains(string(data), "prompt text for") {
		t.Error("summary JSON contains prompt payload")
	}
	if strings.Contains(string(data), "asset://") {
		t.Error("summary JSON contains asset reference")
	}
}

func TestExtractSubgraph(t *testing.T) {
	t.Run("empty selection is the whole graph unscoped", func(t *testing.T) {
		res := flow.ExtractSubgraph(pipeline(), nil)
		if res.IsScoped {
			t.Error("IsScoped = true, want false")
		}
		if res.RestSummary != nil {
			t.Errorf("RestSummary = %+v, want nil", res.RestSummary)
		}
		if len(res.SelectedNodes) != 4 || len(res.SelectedEdges) != 3 {
			t.Errorf("got %d nodes, %d edges; want 4, 3", len(res.SelectedNodes), len(res.SelectedEdges))
		}
	})

	t.Run("partial selection aggregates the rest", func(t *testing.T) {
		res := flow.ExtractSubgraph(pipeline(), []string{"in1", "gi"})
		if !res.IsScoped {
			t.Fatal("IsScoped = false, want true")
		}
		if len(res.SelectedNodes) != 2 {
			t.Errorf("selected %d nodes, want 2", len(res.SelectedNodes))
		}
		// in1 -> gi stays inside; p1 -> gi and gi -> out1 cross the boundary.
		if len(res.SelectedEdges) != 1 {
			t.Errorf("selected %d edges, want 1", len(res.SelectedEdges))
		}

		rest := res.RestSummary
		if rest == nil {
			t.Fatal("RestSummary nil, want aggregate")
		}
		if rest.NodeCount != 2 {
			t.Errorf("rest node count = %d, want 2", rest.NodeCount)
		}
		if rest.TypeBreakdown[flow.NodePrompt] != 1 || rest.TypeBreakdown[flow.NodeOutput] != 1 {
			t.Errorf("type breakdown = %v, want one prompt and one output", rest.TypeBreakdown)
		}
		if len(rest.BoundaryConnections) != 2 {
			t.Fatalf("boundary connections = %v, want 2", rest.BoundaryConnections)
		}
		for _, bc := range rest.BoundaryConnections {
			switch bc.OtherNode {
			case "p1":
				if bc.Direction != flow.Incoming || bc.SelectedNode != "gi" {
					t.Errorf("p1 boundary = %+v, want incoming into gi", bc)
				}
			case "out1":
				if bc.Direction != flow.Outgoing || bc.SelectedNode != "gi" {
					t.Errorf("out1 boundary = %+v, want outgoing from gi", bc)
				}
			default:
				t.Errorf("unexpected boundary node %q", bc.OtherNode)
			}
		}
	})

	t.Run("selecting everything leaves an empty rest", func(t *testing.T) {
		res := flow.ExtractSubgraph(pipeline(), []string{"in1", "p1", "gi", "out1"})
		if !res.IsScoped {
			t.Fatal("IsScoped = false, want true")
		}
		if res.RestSummary == nil {
			t.Fatal("RestSummary nil, want empty aggregate")
		}
		if res.RestSummary.NodeCount != 0 {
			t.Errorf("rest node count = %d, want 0", res.RestSummary.NodeCount)
		}
		if len(res.RestSummary.BoundaryConnections) != 0 {
			t.Errorf("boundary connections = %v, want none", res.RestSummary.BoundaryConnections)
		}
	})

	t.Run("unknown ids in the selection are ignored", func(t *testing.T) {
		res := flow.ExtractSubgraph(pipeline(), []string{"gi", "ghost"})
		if len(res.SelectedNodes) != 1 || res.SelectedNodes[0].ID != "gi" {
			t.Errorf("selected = %v, want just gi", res.SelectedNodes)
		}
	})
}
