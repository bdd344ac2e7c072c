// Package openai adapts generation nodes to OpenAI's APIs via the
// official openai-go client: chat completions for generate-text and the
// Images API for generate-image.
package openai

import (
	"context"
	"encoding/base64"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/nodecanvas/mediagraph/flow"
	"github.com/nodecanvas/mediagraph/flow/dispatch"
)

// Default models when the node names none.
const (
	DefaultTextModel  = "gpt-4o"
	DefaultImageModel = "dall-e-3"
)

// TextAdapter implements dispatch.Adapter for generate-text nodes.
type TextAdapter struct{}

// NewText creates the text adapter.
func NewText() *TextAdapter {
	return &TextAdapter{}
}

// Generate implements dispatch.Adapter.
func (a *TextAdapter) Generate(ctx context.Context, req flow.Request, credential string) (map[string][]flow.Value, flow.Usage, error) {
	prompt := dispatch.PromptText(req)
	if prompt == "" {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindInvalidInput,
			"node %s has no prompt text", req.NodeID)
	}

	model := req.Config.Model
	if model == "" {
		model = DefaultTextModel
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
	}
	if req.Config.Temperature > 0 {
		params.Temperature = openai.Float(req.Config.Temperature)
	}

	client := openai.NewClient(option.WithAPIKey(credential))
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify("openai", err)
	}
	if len(completion.Choices) == 0 {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"openai returned no choices")
	}

	text := completion.Choices[0].Message.Content
	if text == "" {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"openai returned empty content")
	}

	usage := flow.Usage{
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}
	return map[string][]flow.Value{"out": {flow.TextValue(text)}}, usage, nil
}

// ImageAdapter implements dispatch.Adapter for generate-image nodes.
type ImageAdapter struct{}

// NewImage creates the image adapter.
func NewImage() *ImageAdapter {
	return &ImageAdapter{}
}

// Generate implements dispatch.Adapter.
func (a *ImageAdapter) Generate(ctx context.Context, req flow.Request, credential string) (map[string][]flow.Value, flow.Usage, error) {
	prompt := dispatch.PromptText(req)
	if prompt == "" {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindInvalidInput,
			"node %s has no prompt text", req.NodeID)
	}

	model := req.Config.Model
	if model == "" {
		model = DefaultImageModel
	}

	client := openai.NewClient(option.WithAPIKey(credential))
	image, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		Size:           sizeFor(req.Config.AspectRatio),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(1),
	})
	if err != nil {
		return nil, flow.Usage{}, dispatch.Classify("openai", err)
	}
	if len(image.Data) == 0 {
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"openai returned no image data")
	}

	value := flow.Value{Kind: flow.KindImage, MIME: "image/png"}
	switch {
	case image.Data[0].B64JSON != "":
		decoded, err := base64.StdEncoding.DecodeString(image.Data[0].B64JSON)
		if err != nil {
			return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
				"openai returned undecodable image payload")
		}
		value.Data = decoded
	case image.Data[0].URL != "":
		value.URI = image.Data[0].URL
	default:
		return nil, flow.Usage{}, dispatch.Errorf(dispatch.KindMalformedResponse,
			"openai image response carried neither payload nor url")
	}

	// The Images API reports no token usage; count the call as one credit.
	usage := flow.Usage{Credits: 1}
	return map[string][]flow.Value{"out": {value}}, usage, nil
}

// sizeFor maps an aspect ratio to the closest supported size.
func sizeFor(aspectRatio string) openai.ImageGenerateParamsSize {
	switch aspectRatio {
	case "16:9":
		return openai.ImageGenerateParamsSize1792x1024
	case "9:16":
		return openai.ImageGenerateParamsSize1024x1792
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}
