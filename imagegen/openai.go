package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates images with the OpenAI Images API.
type OpenAI struct {
	client openai.Client
	model  openai.ImageModel
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI image generator.
func NewOpenAI(apiKey, model string, logger *slog.Logger) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai image generation requires OPENAI_API_KEY")
	}
	m := openai.ImageModel(model)
	if model == "" {
		m = openai.ImageModelGPTImage1
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
		logger: logger,
	}, nil
}

// Generate requests one image and decodes its base64 payload.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (Image, error) {
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  o.model,
		N:      openai.Int(1),
	}
	// gpt-image-1 always answers in base64 and rejects response_format.
	if o.model != openai.ImageModelGPTImage1 {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}

	resp, err := o.client.Images.Generate(ctx, params)
	if err != nil {
		return Image{}, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Image{}, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	o.logger.Info("🖼️ Generated image", "model", o.model, "bytes", len(data))
	return Image{Data: data, MIMEType: "image/png"}, nil
}
