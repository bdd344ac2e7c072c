package flow

// Edge connects an output handle on one node to an input handle on
// another. The validator enforces that both endpoints exist, that the
// handle kinds match, and that the edge set is acyclic.
type Edge struct {
	// ID uniquely identifies the edge within its graph.
	ID string `json:"id"`

	// Source is the producing node; SourceHandle names one of its
	// output handles.
	Source       string `json:"sourceNodeId"`
	SourceHandle string `json:"sourceHandle"`

	// Target is the consuming node; TargetHandle names one of its
	// input handles.
	Target       string `json:"targetNodeId"`
	TargetHandle string `json:"targetHandle"`
}

// Group is a named set of nodes. A locked group excludes every member
// from execution: members are marked Skipped and their dependents
// become Blocked.
type Group struct {
	// ID uniquely identifies the group within its graph.
	ID string `json:"id"`

	// Locked excludes all members from execution when true.
	Locked bool `json:"locked"`

	// Members lists the ids of the nodes owned by this group.
	Members []string `json:"memberNodeIds"`
}
