package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Scanlens/internal/core"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiLLM classifies through the Gemini API.
type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

// NewGeminiLLM falls back to GEMINI_API_KEY when apiKey is empty.
func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("gemini: no API key (set GEMINI_API_KEY)")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client (%s): %w", modelName, err)
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate runs at temperature 0 so identical prompts yield identical labels.
// The model is built per call since the system instruction is per call.
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0)
	m.SetCandidateCount(1)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %w", g.modelName, err)
	}
	text, err := candidateText(resp)
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %w", g.modelName, err)
	}
	return text, nil
}

// candidateText joins the text parts of the first candidate. A blocked
// prompt or a candidate stopped without content is an error, not an empty
// label.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response")
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}

	c := resp.Candidates[0]
	if c.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason %s)", c.FinishReason)
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 && c.FinishReason != genai.FinishReasonStop {
		return "", fmt.Errorf("candidate stopped early (finish reason %s)", c.FinishReason)
	}
	return b.String(), nil
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
