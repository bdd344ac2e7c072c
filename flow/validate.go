package flow

import (
	"fmt"
	"sort"
)

// ValidationErrorKind classifies a single validator finding.
type ValidationErrorKind string

const (
	// ErrorKindBadEndpoint marks an edge referencing a missing node or
	// a handle that does not exist on the endpoint's node type.
	ErrorKindBadEndpoint ValidationErrorKind = "bad-endpoint"

	// ErrorKindKindMismatch marks an edge whose source and target
	// handle kinds differ.
	ErrorKindKindMismatch ValidationErrorKind = "kind-mismatch"

	// ErrorKindMultiplicity marks a single-multiplicity input handle
	// targeted by more than one edge.
	ErrorKindMultiplicity ValidationErrorKind = "multiplicity"

	// ErrorKindCycle marks a dependency cycle.
	ErrorKindCycle ValidationErrorKind = "cycle"

	// ErrorKindUnsatisfiableInput marks a required input handle of a
	// non-locked node with no incoming edge. The runner degrades this
	// to a Blocked seed rather than refusing the run.
	ErrorKindUnsatisfiableInput ValidationErrorKind = "unsatisfiable-input"

	// ErrorKindBadNode marks a node with an unknown type or duplicate id.
	ErrorKindBadNode ValidationErrorKind = "bad-node"
)

// ValidationError is one finding against a graph. NodeID and EdgeID are
// filled when the finding points at a specific node or edge; Cycle
// carries the offending node ids for ErrorKindCycle.
type ValidationError struct {
	Kind    ValidationErrorKind `json:"kind"`
	NodeID  string              `json:"nodeId,omitempty"`
	EdgeID  string              `json:"edgeId,omitempty"`
	Message string              `json:"message"`
	Cycle   []string            `json:"cycle,omitempty"`
}

func (e ValidationError) Error() string { return string(e.Kind) + ": " + e.Message }

// ValidationResult aggregates validator findings. OK is true only when
// Errors is empty.
type ValidationResult struct {
	OK     bool              `json:"ok"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// structural reports whether the result contains findings that must
// prevent a run (everything except unsatisfiable required inputs, which
// the runner turns into Blocked seeds).
func (r ValidationResult) structural() bool {
	for _, e := range r.Errors {
		if e.Kind != ErrorKindUnsatisfiableInput {
			return true
		}
	}
	return false
}

// Validate checks a graph's structural and type invariants. It is pure:
// the graph is never mutated and no state is retained.
//
// Checks run in order and fail fast on the first violated invariant,
// with two exceptions: handle-kind mismatches are collected in full so
// an editor can highlight every bad edge at once, and unsatisfiable
// required inputs are collected in full so the runner can seed each
// affected node Blocked.
func Validate(g *Graph) ValidationResult {
	ix := buildIndex(g)

	if err := checkNodes(g, ix); err != nil {
		return fail(*err)
	}
	if err := checkEndpoints(g, ix); err != nil {
		return fail(*err)
	}
	if errs := checkKinds(g, ix); len(errs) > 0 {
		return ValidationResult{Errors: errs}
	}
	if err := checkMultiplicity(g, ix); err != nil {
		return fail(*err)
	}
	if err := checkAcyclic(g, ix); err != nil {
		return fail(*err)
	}
	if errs := checkRequiredInputs(g, ix); len(errs) > 0 {
		return ValidationResult{Errors: errs}
	}
	return ValidationResult{OK: true}
}

func fail(err ValidationError) ValidationResult {
	return ValidationResult{Errors: []ValidationError{err}}
}

func checkNodes(g *Graph, ix *index) *ValidationError {
	seen := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			return &ValidationError{Kind: ErrorKindBadNode, Message: "node with empty id"}
		}
		if seen[n.ID] {
			return &ValidationError{Kind: ErrorKindBadNode, NodeID: n.ID,
				Message: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		seen[n.ID] = true
		if !n.Type.Valid() {
			return &ValidationError{Kind: ErrorKindBadNode, NodeID: n.ID,
				Message: fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type)}
		}
	}
	return nil
}

func checkEndpoints(g *Graph, ix *index) *ValidationError {
	for i := range g.Edges {
		e := &g.Edges[i]
		src, ok := ix.nodes[e.Source]
		if !ok {
			return &ValidationError{Kind: ErrorKindBadEndpoint, EdgeID: e.ID,
				Message: fmt.Sprintf("edge %q references missing source node %q", e.ID, e.Source)}
		}
		tgt, ok := ix.nodes[e.Target]
		if !ok {
			return &ValidationError{Kind: ErrorKindBadEndpoint, EdgeID: e.ID,
				Message: fmt.Sprintf("edge %q references missing target node %q", e.ID, e.Target)}
		}
		if _, ok := LookupHandle(src.Type, Out, e.SourceHandle); !ok {
			return &ValidationError{Kind: ErrorKindBadEndpoint, EdgeID: e.ID, NodeID: src.ID,
				Message: fmt.Sprintf("edge %q references unknown output handle %q on node %q", e.ID, e.SourceHandle, src.ID)}
		}
		if _, ok := LookupHandle(tgt.Type, In, e.TargetHandle); !ok {
			return &ValidationError{Kind: ErrorKindBadEndpoint, EdgeID: e.ID, NodeID: tgt.ID,
				Message: fmt.Sprintf("edge %q references unknown input handle %q on node %q", e.ID, e.TargetHandle, tgt.ID)}
		}
	}
	return nil
}

// checkKinds collects every kind-incompatible edge. Endpoint existence
// was verified already, so handle lookups cannot miss here.
func checkKinds(g *Graph, ix *index) []ValidationError {
	var errs []ValidationError
	for i := range g.Edges {
		e := &g.Edges[i]
		srcSpec, _ := LookupHandle(ix.nodes[e.Source].Type, Out, e.SourceHandle)
		tgtSpec, _ := LookupHandle(ix.nodes[e.Target].Type, In, e.TargetHandle)
		if srcSpec.Kind != tgtSpec.Kind {
			errs = append(errs, ValidationError{
				Kind:   ErrorKindKindMismatch,
				EdgeID: e.ID,
				Message: fmt.Sprintf("edge %q connects %s output %q to %s input %q",
					e.ID, srcSpec.Kind, e.SourceHandle, tgtSpec.Kind, e.TargetHandle),
			})
		}
	}
	return errs
}

func checkMultiplicity(g *Graph, ix *index) *ValidationError {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		for _, h := range InputHandles(n.Type) {
			if h.Multiplicity != Single {
				continue
			}
			if in := ix.edgesInto(n.ID, h.Name); len(in) > 1 {
				return &ValidationError{
					Kind:   ErrorKindMultiplicity,
					NodeID: n.ID,
					EdgeID: in[1].ID,
					Message: fmt.Sprintf("input %q on node %q accepts a single edge but receives %d",
						h.Name, n.ID, len(in)),
				}
			}
		}
	}
	return nil
}

// dfs colors for cycle detection.
const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // fully explored
)

// checkAcyclic runs a depth-first coloring walk over the node graph and
// reports the first cycle found as the sequence of node ids on it.
// Start order is sorted so the reported cycle is deterministic.
func checkAcyclic(g *Graph, ix *index) *ValidationError {
	color := make(map[string]int, len(g.Nodes))
	ids := make([]string, 0, len(g.Nodes))
	for i := range g.Nodes {
		ids = append(ids, g.Nodes[i].ID)
	}
	sort.Strings(ids)

	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		path = append(path, id)
		for _, e := range ix.outgoing[id] {
			next := e.Target
			switch color[next] {
			case grey:
				// Cycle closes at next; slice the current path from its
				// first occurrence.
				for i, p := range path {
					if p == next {
						cycle = append([]string(nil), path[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && visit(id) {
			return &ValidationError{
				Kind:    ErrorKindCycle,
				Message: fmt.Sprintf("dependency cycle: %v", cycle),
				Cycle:   cycle,
			}
		}
	}
	return nil
}

func checkRequiredInputs(g *Graph, ix *index) []ValidationError {
	var errs []ValidationError
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if ix.locked[n.ID] {
			continue
		}
		for _, h := range InputHandles(n.Type) {
			if !h.Required {
				continue
			}
			if len(ix.edgesInto(n.ID, h.Name)) == 0 {
				errs = append(errs, ValidationError{
					Kind:   ErrorKindUnsatisfiableInput,
					NodeID: n.ID,
					Message: fmt.Sprintf("required input %q on node %q has no incoming edge",
						h.Name, n.ID),
				})
			}
		}
	}
	return errs
}
