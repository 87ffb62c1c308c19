package factory

import (
	"context"
	"fmt"

	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/llm/gemini"
	"rag-chatbot-be/pkg/llm/huggingface"
	"rag-chatbot-be/pkg/llm/ollama"
)

type Config struct {
	Provider string // "gemini", "ollama", "huggingface" or "none"
	Model    string
	BaseURL  string
	APIKey   string
}

// NewLLMProvider returns llm.ErrProviderDisabled when Provider is "none" or empty.
func NewLLMProvider(ctx context.Context, cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "", "none", "disabled":
		return nil, llm.ErrProviderDisabled
	case "gemini", "google":
		return gemini.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
