package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash-image"

// Gemini generates images with a Gemini image model.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini image generator.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini image generation requires an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Generate asks the model for an image and returns the first inline image part.
func (g *Gemini) Generate(ctx context.Context, prompt string) (Image, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return Image{}, fmt.Errorf("generate image: %w", err)
	}
	img, ok := firstImage(resp)
	if !ok {
		return Image{}, ErrNoImage
	}
	g.logger.Info("🖼️ Generated image", "model", g.model, "bytes", len(img.Data))
	return img, nil
}

func firstImage(resp *genai.GenerateContentResponse) (Image, bool) {
	if resp == nil {
		return Image{}, false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				continue
			}
			return Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, true
		}
	}
	return Image{}, false
}
