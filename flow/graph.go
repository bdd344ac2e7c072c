package flow

import (
	"encoding/json"
	"fmt"
)

// Graph is the in-memory workflow supplied by the editor. It is treated
// as read-only by this package: execution writes results into a per-run
// state table, never back into the graph.
type Graph struct {
	Nodes  []Node  `json:"nodes"`
	Edges  []Edge  `json:"edges"`
	Groups []Group `json:"groups,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// index is the edge-adjacency view of a graph used by the validator,
// the runner, and the projection. Built once per operation; the slices
// preserve the graph's edge order so downstream behavior is stable.
type index struct {
	nodes    map[string]*Node
	incoming map[string][]*Edge // target node id -> edges into it
	outgoing map[string][]*Edge // source node id -> edges out of it
	locked   map[string]bool    // node id -> member of a locked group
}

func buildIndex(g *Graph) *index {
	ix := &index{
		nodes:    make(map[string]*Node, len(g.Nodes)),
		incoming: make(map[string][]*Edge),
		outgoing: make(map[string][]*Edge),
		locked:   make(map[string]bool),
	}
	for i := range g.Nodes {
		ix.nodes[g.Nodes[i].ID] = &g.Nodes[i]
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		ix.incoming[e.Target] = append(ix.incoming[e.Target], e)
		ix.outgoing[e.Source] = append(ix.outgoing[e.Source], e)
	}
	for _, grp := range g.Groups {
		if !grp.Locked {
			continue
		}
		for _, id := range grp.Members {
			ix.locked[id] = true
		}
	}
	return ix
}

// edgesInto returns the edges targeting a specific input handle, in
// graph order.
func (ix *index) edgesInto(nodeID, handle string) []*Edge {
	var out []*Edge
	for _, e := range ix.incoming[nodeID] {
		if e.TargetHandle == handle {
			out = append(out, e)
		}
	}
	return out
}

// snapshot deep-copies a graph through a JSON round trip so a run is
// isolated from concurrent editor mutations. The same idiom backs state
// copies throughout this package: it covers every JSON-serializable
// shape without reflection-heavy custom walkers.
func snapshot(g *Graph) (*Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot graph: %w", err)
	}
	var copied Graph
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to restore graph snapshot: %w", err)
	}
	return &copied, nil
}
