package dispatch

import (
	"strings"

	"github.com/nodecanvas/mediagraph/flow"
)

// PromptText joins the text values collected on the node's prompt
// handle, in edge order, separated by blank lines. Adapters use it to
// form the backend prompt.
func PromptText(req flow.Request) string {
	values := req.Inputs["prompt"]
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v.Kind == flow.KindText && v.Text != "" {
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// InputImages returns the image values collected on the node's image
// handle, in edge order.
func InputImages(req flow.Request) []flow.Value {
	values := req.Inputs["image"]
	images := make([]flow.Value, 0, len(values))
	for _, v := range values {
		if v.Kind == flow.KindImage {
			images = append(images, v)
		}
	}
	return images
}
