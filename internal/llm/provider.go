package llm

import (
	"context"
	"fmt"
)

// Providers accepted by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ProviderConfig selects and configures the generation and embedding backends.
type ProviderConfig struct {
	Provider string

	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32

	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingDim     int

	GeminiAPIKey     string
	GeminiModel      string
	GeminiEmbedModel string
}

// NewProvider builds the Generator and Embedder for cfg.Provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Generator, Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		gen := NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature)
		emb := NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.APIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
		return gen, emb, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel, cfg.Temperature, cfg.EmbeddingDim)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
