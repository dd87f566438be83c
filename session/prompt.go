package session

import (
	"fmt"

	"github.com/room4-2/OpenInterpret/config"
)

const transcribePrompt = `You are a live captioning assistant.
Listen to the user and stay silent. Do not answer questions, greet, or add commentary.
Your only job is to let the user's speech be transcribed accurately.
If the user explicitly asks for a picture, call render_image with a detailed prompt.`

const translatePrompt = `You are a professional simultaneous interpreter.
Translate everything the user says into %[1]s.
Speak only the %[1]s translation. Never answer questions yourself, never explain, and never repeat the original language.
Keep names, numbers and technical terms intact. If something is unclear, translate it as literally as possible.
If the user explicitly asks for a picture, call render_image with a detailed prompt written in English.`

// Instruction builds the system instruction for a session. With no target
// language the model only listens so the input can be transcribed.
func Instruction(lang config.Language, translate bool) string {
	if !translate {
		return transcribePrompt
	}
	return fmt.Sprintf(translatePrompt, lang.Name)
}
