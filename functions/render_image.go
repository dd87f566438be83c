package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/room4-2/OpenInterpret/imagegen"
	"github.com/room4-2/OpenInterpret/transport"
)

// RenderImageName is the tool name the model uses to request a picture.
const RenderImageName = "render_image"

const (
	msgImageFailed = "Failed to generate image."
	msgImageError  = "Error occurred while generating the image."
)

// RenderImage draws what the conversation describes and shows it to the user.
func RenderImage(gen imagegen.Generator) Capability {
	return Capability{
		Spec: transport.ToolSpec{
			Name:        RenderImageName,
			Description: "Generate an image from a text description and show it to the user.",
			Params: []transport.Param{{
				Name:        "prompt",
				Type:        transport.TypeString,
				Description: "Detailed description of the image to draw",
				Required:    true,
			}},
		},
		Handler: func(ctx context.Context, args map[string]any) Result {
			prompt, _ := args["prompt"].(string)
			prompt = strings.TrimSpace(prompt)
			if prompt == "" {
				return Result{Output: "Error occurred: missing prompt", Text: msgImageError}
			}

			img, err := gen.Generate(ctx, prompt)
			switch {
			case errors.Is(err, imagegen.ErrNoImage):
				return Result{Output: msgImageFailed, Text: msgImageFailed}
			case err != nil:
				return Result{Output: fmt.Sprintf("Error occurred: %v", err), Text: msgImageError}
			}
			return Result{
				Output: "Image generated and displayed to the user.",
				Text:   prompt,
				Image:  img.DataURL(),
			}
		},
	}
}
