package llm

import (
	"context"
	"fmt"

	"github.com/markdave123-py/Scanlens/internal/config"
	"github.com/markdave123-py/Scanlens/internal/core"
)

// NewProvider builds the chat backend named by cfg.LLMProvider.
func NewProvider(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.LLMProvider {
	case "", "ollama":
		return NewOllamaLLM(cfg.OllamaURL, cfg.GenModel)
	case "gemini":
		return NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q (want ollama or gemini)", cfg.LLMProvider)
	}
}
