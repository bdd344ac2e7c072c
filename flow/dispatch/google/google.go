// Package google adapts generate-text nodes to Google's Gemini API via
// the official generative-ai-go client.
package google

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nodecanvas/mediagraph/flow"
	"github.com/nodecanvas/mediagraph/flow/dispatch"
)

// DefaultModel is used when the node names no model.
const DefaultModel = "gemini-1.5-flash"

// Adapter implements dispatch.Adapter for generate-text nodes.
//
// The genai client binds the API key at construction, so a client is
// created per call around the resolved credential and closed before
// returning.
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

	modelName := req.Config.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(credential))
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify("google", err)
	}
	defer func() { _ = client.Close() }()

	model := client.GenerativeModel(modelName)
	if req.Config.Temperature > 0 {
		model.SetTemperature(float32(req.Config.Temperature))
	}

	parts := []genai.Part{genai.Text(prompt)}
	for _, img := range dispatch.InputImages(req) {
		if len(img.Data) == 0 {
			continue
		}
		parts = append(parts, genai.ImageData(imageFormat(img.MIME), img.Data))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify("google", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"gemini returned no text parts")
	}

	var usage flow.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return map[string][]flow.Value{"out": {flow.TextValue(sb.String())}}, usage, nil
}

// imageFormat extracts the genai format token from a MIME type
// ("image/png" -> "png"). Gemini defaults sensibly on unknown formats.
func imageFormat(mime string) string {
	if idx := strings.IndexByte(mime, '/'); idx >= 0 {
		return mime[idx+1:]
	}
	return "png"
}
