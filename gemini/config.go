package gemini

import (
	"google.golang.org/genai"

	"github.com/room4-2/OpenInterpret/transport"
)

func connectConfig(cfg transport.Config) *genai.LiveConnectConfig {
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
			LanguageCode: cfg.LanguageCode,
		},
		Tools: tools(cfg.Tools),
	}
	if cfg.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.InputTranscript {
		config.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscript {
		config.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return config
}

func tools(specs []transport.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, functionDeclaration(spec))
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func functionDeclaration(spec transport.ToolSpec) *genai.FunctionDeclaration {
	decl := &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
	}
	if len(spec.Params) == 0 {
		return decl
	}

	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(spec.Params)),
	}
	for _, p := range spec.Params {
		schema.Properties[p.Name] = &genai.Schema{
			Type:        schemaType(p.Type),
			Description: p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	decl.Parameters = schema
	return decl
}

func schemaType(t transport.ParamType) genai.Type {
	switch t {
	case transport.TypeNumber:
		return genai.TypeNumber
	case transport.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
