// Package anthropic adapts text generation nodes to Anthropic's
// Messages API via the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"encoding/base64"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nodecanvas/mediagraph/flow"
	"github.com/nodecanvas/mediagraph/flow/dispatch"
)

// DefaultModel is used when the node names no model.
const DefaultModel = "claude-3-5-sonnet-20241022"

const maxTokens = 4096

// Adapter implements dispatch.Adapter for generate-text nodes. Safe for
// concurrent use; the client is rebuilt per call around the resolved
// credential, which the SDK makes cheap.
type Adapter struct{}

// New creates the adapter.
func New() *Adapter {
	return &Adapter{}
}

// Generate implements dispatch.Adapter.
func (a *Adapter) Generate(ctx context.Context, req flow.Request, credential string) (map[string][]flow.Value, flow.Usage, error) {
	prompt := dispatch.PromptText(req)
	if prompt == "" {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindInvalidInput,
			"node %s has no prompt text", req.NodeID)
	}

	model := req.Config.Model
	if model == "" {
		model = DefaultModel
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}
	for _, img := range dispatch.InputImages(req) {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.MIME
		if mime == "" {
			mime = "image/png"
		}
		encoded := base64.StdEncoding.EncodeToString(img.Data)
		blocks = append(blocks, anthropic.NewImageBlockBase64(mime, encoded))
	}

	client := anthropic.NewClient(option.WithAPIKey(credential))
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify("anthropic", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"anthropic returned no text content")
	}

	usage := flow.Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}
	return map[string][]flow.Value{"out": {flow.TextValue(text)}}, usage, nil
}
