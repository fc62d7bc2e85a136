package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/markdave123-py/Scanlens/internal/core"
)

// OllamaLLM talks to a local Ollama server through langchaingo.
type OllamaLLM struct {
	llm       *ollama.LLM
	modelName string
}

func NewOllamaLLM(serverURL, modelName string) (*OllamaLLM, error) {
	if modelName == "" {
		modelName = "qwen2.5"
	}
	opts := []ollama.Option{ollama.WithModel(modelName)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	l, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &OllamaLLM{llm: l, modelName: modelName}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var msgs []llms.MessageContent
	if systemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, userPrompt))

	resp, err := o.llm.GenerateContent(ctx, msgs, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("ollama generate (%s): %w", o.modelName, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

var _ core.LLMProvider = (*OllamaLLM)(nil)
