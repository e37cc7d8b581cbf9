package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const refineInstruction = `Rewrite the following image description as a single vivid English prompt for a text-to-image model.
Keep the subject and style the user asked for. Reply with the prompt only, no quotes or commentary.

Description: `

// GeminiPromptRefiner rewrites user prompts with a Gemini model before they
// are sent to the image generator.
type GeminiPromptRefiner struct {
	model *genai.GenerativeModel
}

func NewGeminiPromptRefiner(client *genai.Client, modelName string) *GeminiPromptRefiner {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	return &GeminiPromptRefiner{model: model}
}

func (r *GeminiPromptRefiner) Refine(ctx context.Context, prompt string) (string, error) {
	resp, err := r.model.GenerateContent(ctx, genai.Text(refineInstruction+prompt))
	if err != nil {
		return "", fmt.Errorf("refine prompt: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("refine prompt: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
