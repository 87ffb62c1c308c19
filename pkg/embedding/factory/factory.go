package factory

import (
	"context"
	"fmt"
	"time"

	"rag-chatbot-be/pkg/cache"
	"rag-chatbot-be/pkg/embedding"
	"rag-chatbot-be/pkg/embedding/jina"
)

type Config struct {
	Provider            string // "huggingface", "ollama", "gemini" or "jina"
	LocalModel          string
	ModelDir            string
	OllamaBaseURL       string
	OllamaModel         string
	GeminiAPIKey        string
	GeminiModel         string
	GeminiRatePerSecond float64
	JinaAPIKey          string
	JinaModel           string
	MaxTries            uint
	QueryCache          cache.VectorCache
}

// NewEmbeddingProvider builds the configured backend wrapped with retries and,
// when a cache is given, query caching.
func NewEmbeddingProvider(ctx context.Context, cfg Config) (embedding.EmbeddingProvider, error) {
	var base embedding.EmbeddingProvider
	switch cfg.Provider {
	case "huggingface", "local", "":
		base = embedding.NewHugotProvider(cfg.LocalModel, cfg.ModelDir)
	case "ollama":
		base = embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	case "gemini", "google":
		p, err := embedding.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiRatePerSecond)
		if err != nil {
			return nil, err
		}
		base = p
	case "jina":
		if cfg.JinaAPIKey == "" {
			return nil, fmt.Errorf("jina embedding: api key is not set")
		}
		base = jina.NewJinaProvider(cfg.JinaAPIKey, cfg.JinaModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	var provider embedding.EmbeddingProvider = embedding.NewRetryingProvider(base, cfg.MaxTries, 200*time.Millisecond)
	if cfg.QueryCache != nil {
		provider = embedding.NewCachedProvider(provider, cfg.QueryCache)
	}
	return provider, nil
}
