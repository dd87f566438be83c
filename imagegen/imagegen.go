// Package imagegen produces images for the render_image tool.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoImage is returned when a backend answers without image data.
var ErrNoImage = errors.New("no image in response")

// Image is a generated picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL encodes the image for direct display in a browser.
func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// Generator turns a text prompt into an image.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Image, error)
}

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options selects and configures a backend.
type Options struct {
	Provider     string
	Model        string
	GeminiAPIKey string
	OpenAIAPIKey string
	Logger       *slog.Logger
}

// New builds the generator named by opts.Provider.
func New(ctx context.Context, opts Options) (Generator, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch opts.Provider {
	case "", ProviderGemini:
		return NewGemini(ctx, opts.GeminiAPIKey, opts.Model, opts.Logger)
	case ProviderOpenAI:
		return NewOpenAI(opts.OpenAIAPIKey, opts.Model, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown image provider %q", opts.Provider)
	}
}
