package flow

// Structural projections of a graph for advisory consumers. Summaries
// carry node identity, type, title, model and edge topology only; no
// prompts, no media payloads. Both shapes are JSON-serializable and
// safe to hand to a third-party text model.

// NodeSummary is the structural view of one node.
type NodeSummary struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Title string   `json:"title"`

	// Model is set only for generation node types.
	Model string `json:"model,omitempty"`
}

// EdgeSummary is the structural view of one edge.
type EdgeSummary struct {
	From string     `json:"from"`
	To   string     `json:"to"`
	Kind HandleKind `json:"handleKind"`
}

// GraphSummary is the structural view of a whole graph.
type GraphSummary struct {
	Nodes []NodeSummary `json:"nodes"`
	Edges []EdgeSummary `json:"edges"`
}

// Summarize produces the structural summary of a graph. Titles default
// from the node type when unset; order follows the graph.
func Summarize(g *Graph) GraphSummary {
	s := GraphSummary{
		Nodes: make([]NodeSummary, 0, len(g.Nodes)),
		Edges: make([]EdgeSummary, 0, len(g.Edges)),
	}
	for i := range g.Nodes {
		s.Nodes = append(s.Nodes, summarizeNode(&g.Nodes[i]))
	}
	ix := buildIndex(g)
	for i := range g.Edges {
		s.Edges = append(s.Edges, summarizeEdge(&g.Edges[i], ix))
	}
	return s
}

func summarizeNode(n *Node) NodeSummary {
	ns := NodeSummary{ID: n.ID, Type: n.Type, Title: n.DisplayTitle()}
	if n.Type.Generative() {
		ns.Model = n.Data.Model
	}
	return ns
}

func summarizeEdge(e *Edge, ix *index) EdgeSummary {
	es := EdgeSummary{From: e.Source, To: e.Target}
	if src, ok := ix.nodes[e.Source]; ok {
		if spec, ok := LookupHandle(src.Type, Out, e.SourceHandle); ok {
			es.Kind = spec.Kind
		}
	}
	return es
}

// BoundaryDirection orients a boundary connection relative to the
// selection.
type BoundaryDirection string

const (
	// Incoming edges feed the selection from outside.
	Incoming BoundaryDirection = "incoming"

	// Outgoing edges leave the selection.
	Outgoing BoundaryDirection = "outgoing"
)

// BoundaryConnection records one edge crossing the selection boundary.
type BoundaryConnection struct {
	Direction    BoundaryDirection `json:"direction"`
	SelectedNode string            `json:"selectedNode"`
	OtherNode    string            `json:"otherNode"`
	Kind         HandleKind        `json:"handleKind"`
}

// RestSummary aggregates the unselected complement of a scoped
// extraction.
type RestSummary struct {
	NodeCount           int                  `json:"nodeCount"`
	TypeBreakdown       map[NodeType]int     `json:"typeBreakdown"`
	BoundaryConnections []BoundaryConnection `json:"boundaryConnections"`
}

// SubgraphResult is the outcome of ExtractSubgraph.
type SubgraphResult struct {
	SelectedNodes []NodeSummary `json:"selectedNodes"`
	SelectedEdges []EdgeSummary `json:"selectedEdges"`

	// RestSummary describes the unselected complement; nil when the
	// extraction is unscoped.
	RestSummary *RestSummary `json:"restSummary,omitempty"`

	IsScoped bool `json:"isScoped"`
}

// ExtractSubgraph projects the induced subgraph over a selection plus an
// aggregate view of everything else, so a consumer can reason about a
// focused portion of a large graph without receiving the full structure.
//
// An empty selection returns the whole graph unscoped: IsScoped is
// false and RestSummary is nil.
func ExtractSubgraph(g *Graph, selectedNodeIDs []string) SubgraphResult {
	ix := buildIndex(g)

	if len(selectedNodeIDs) == 0 {
		full := Summarize(g)
		return SubgraphResult{
			SelectedNodes: full.Nodes,
			SelectedEdges: full.Edges,
			IsScoped:      false,
		}
	}

	selected := make(map[string]bool, len(selectedNodeIDs))
	for _, id := range selectedNodeIDs {
		if _, ok := ix.nodes[id]; ok {
			selected[id] = true
		}
	}

	res := SubgraphResult{IsScoped: true}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if selected[n.ID] {
			res.SelectedNodes = append(res.SelectedNodes, summarizeNode(n))
		}
	}

	rest := &RestSummary{TypeBreakdown: make(map[NodeType]int)}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !selected[n.ID] {
			rest.NodeCount++
			rest.TypeBreakdown[n.Type]++
		}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		srcIn, tgtIn := selected[e.Source], selected[e.Target]
		switch {
		case srcIn && tgtIn:
			res.SelectedEdges = append(res.SelectedEdges, summarizeEdge(e, ix))
		case srcIn:
			rest.BoundaryConnections = append(rest.BoundaryConnections, BoundaryConnection{
				Direction:    Outgoing,
				SelectedNode: e.Source,
				OtherNode:    e.Target,
				Kind:         summarizeEdge(e, ix).Kind,
			})
		case tgtIn:
			rest.BoundaryConnections = append(rest.BoundaryConnections, BoundaryConnection{
				Direction:    Incoming,
				SelectedNode: e.Target,
				OtherNode:    e.Source,
				Kind:         summarizeEdge(e, ix).Kind,
			})
		}
	}

	res.RestSummary = rest
	return res
}
