package embedding

import (
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-sop/internal/config"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, nil, logger)
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, nil, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
