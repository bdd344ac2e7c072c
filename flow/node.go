// Package flow provides the graph model and execution core for mediagraph.
package flow

// NodeType enumerates the closed set of node variants a graph may contain.
//
// The set is closed on purpose: handle layouts, validation rules, and
// dispatch routing are all resolved through per-type registries rather
// than scattered string comparisons.
type NodeType string

const (
	// NodeInput supplies a media asset (an image) into the graph.
	NodeInput NodeType = "input"

	// NodePrompt supplies authored text into the graph.
	NodePrompt NodeType = "prompt"

	// NodeGenerateImage produces an image from a text prompt and
	// optional reference images via an external backend.
	NodeGenerateImage NodeType = "generate-image"

	// NodeGenerateVideo produces a video from a text prompt and an
	// optional source image via an external backend.
	NodeGenerateVideo NodeType = "generate-video"

	// NodeGenerateText produces text from upstream text and optional
	// images via an external backend.
	NodeGenerateText NodeType = "generate-text"

	// NodeAnnotate overlays a note onto an image.
	NodeAnnotate NodeType = "annotate"

	// NodeSplit passes its input image through so multiple consumers
	// can branch from a single upstream producer.
	NodeSplit NodeType = "split"

	// NodeOutput collects final results. It has no outputs of its own.
	NodeOutput NodeType = "output"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	_, ok := handleRegistry[t]
	return ok
}

// Generative reports whether t dispatches to an external generation
// backend. Non-generative types (input, prompt, annotate, split, output)
// are evaluated locally.
func (t NodeType) Generative() bool {
	switch t {
	case NodeGenerateImage, NodeGenerateVideo, NodeGenerateText:
		return true
	}
	return false
}

// Node is a single typed processing step in a graph.
//
// Nodes are created by the editor and are read-only to this package
// during a run; execution results live in the per-run state table, never
// on the node itself.
type Node struct {
	// ID uniquely identifies the node within its graph.
	ID string `json:"id"`

	// Type selects the node variant and, with it, the handle layout.
	Type NodeType `json:"type"`

	// Title is an optional user-facing label. Empty titles default from
	// the type in summaries.
	Title string `json:"title,omitempty"`

	// Data holds the variant-specific configuration.
	Data NodeData `json:"data"`

	// GroupID back-references the owning Group, if any.
	GroupID string `json:"groupId,omitempty"`
}

// NodeData carries variant-specific configuration. Only the fields
// relevant to the node's type are consulted; the rest stay zero.
type NodeData struct {
	// Provider selects the backend for generative types ("anthropic",
	// "openai", "google", ...). Empty selects the dispatcher default
	// for the node type.
	Provider string `json:"provider,omitempty"`

	// Model names the backend model for generative types.
	Model string `json:"model,omitempty"`

	// Text is the authored content of prompt and annotate nodes.
	Text string `json:"text,omitempty"`

	// AspectRatio configures image and video generation ("16:9", "1:1").
	AspectRatio string `json:"aspectRatio,omitempty"`

	// Temperature configures text generation sampling.
	Temperature float64 `json:"temperature,omitempty"`

	// Asset is the media supplied by an input node.
	Asset *Value `json:"asset,omitempty"`
}

// Direction distinguishes input handles from output handles.
type Direction string

const (
	// In marks a handle that receives values from incoming edges.
	In Direction = "in"

	// Out marks a handle that supplies values to outgoing edges.
	Out Direction = "out"
)

// HandleKind is the payload type flowing through a handle. Edges may
// only connect handles of the same kind.
type HandleKind string

const (
	KindImage HandleKind = "image"
	KindText  HandleKind = "text"
	KindVideo HandleKind = "video"
)

// Multiplicity bounds how many edges may target an input handle.
type Multiplicity string

const (
	// Single input handles accept at most one incoming edge.
	Single Multiplicity = "single"

	// Multiple input handles accept any number of incoming edges.
	Multiple Multiplicity = "multiple"
)

// HandleSpec describes one typed attachment point on a node type.
//
// Handle layouts are static per node type; LookupHandle resolves a
// (type, direction, name) triple against the registry.
type HandleSpec struct {
	Name         string
	Direction    Direction
	Kind         HandleKind
	Multiplicity Multiplicity

	// Required applies to input handles only. A required handle must be
	// satisfied by a Succeeded producer before the node can run.
	Required bool
}

// handleRegistry fixes the handle layout for every node type.
var handleRegistry = map[NodeType][]HandleSpec{
	NodeInput: {
		{Name: "out", Direction: Out, Kind: KindImage},
	},
	NodePrompt: {
		{Name: "out", Direction: Out, Kind: KindText},
	},
	NodeGenerateImage: {
		{Name: "prompt", Direction: In, Kind: KindText, Multiplicity: Single, Required: true},
		{Name: "image", Direction: In, Kind: KindImage, Multiplicity: Multiple},
		{Name: "out", Direction: Out, Kind: KindImage},
	},
	NodeGenerateVideo: {
		{Name: "prompt", Direction: In, Kind: KindText, Multiplicity: Single, Required: true},
		{Name: "image", Direction: In, Kind: KindImage, Multiplicity: Single},
		{Name: "out", Direction: Out, Kind: KindVideo},
	},
	NodeGenerateText: {
		{Name: "prompt", Direction: In, Kind: KindText, Multiplicity: Multiple, Required: true},
		{Name: "image", Direction: In, Kind: KindImage, Multiplicity: Multiple},
		{Name: "out", Direction: Out, Kind: KindText},
	},
	NodeAnnotate: {
		{Name: "image", Direction: In, Kind: KindImage, Multiplicity: Single, Required: true},
		{Name: "note", Direction: In, Kind: KindText, Multiplicity: Single},
		{Name: "out", Direction: Out, Kind: KindImage},
	},
	NodeSplit: {
		{Name: "image", Direction: In, Kind: KindImage, Multiplicity: Single, Required: true},
		{Name: "out", Direction: Out, Kind: KindImage},
	},
	NodeOutput: {
		{Name: "image", Direction: In, Kind: KindImage, Multiplicity: Multiple},
		{Name: "text", Direction: In, Kind: KindText, Multiplicity: Multiple},
		{Name: "video", Direction: In, Kind: KindVideo, Multiplicity: Multiple},
	},
}

// Handles returns the static handle layout for a node type. The returned
// slice is shared; callers must not mutate it.
func Handles(t NodeType) []HandleSpec {
	return handleRegistry[t]
}

// LookupHandle resolves a handle by direction and name on a node type.
// The second return is false when the type or handle does not exist.
func LookupHandle(t NodeType, dir Direction, name string) (HandleSpec, bool) {
	for _, h := range handleRegistry[t] {
		if h.Direction == dir && h.Name == name {
			return h, true
		}
	}
	return HandleSpec{}, false
}

// InputHandles returns the input handle specs for a node type.
func InputHandles(t NodeType) []HandleSpec {
	var in []HandleSpec
	for _, h := range handleRegistry[t] {
		if h.Direction == In {
			in = append(in, h)
		}
	}
	return in
}

// DisplayTitle returns the node's title, defaulting from its type.
func (n *Node) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return string(n.Type)
}
