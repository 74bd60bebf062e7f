package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig configures an OpenAIEmbedder. BaseURL may point at any
// OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIEmbedder calls the embeddings endpoint of an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIEmbedder builds an embedder. httpClient may be nil. Client retries are
// disabled; a failed call fails the run and retrying is left to the caller.
func NewOpenAIEmbedder(cfg OpenAIConfig, httpClient *http.Client, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai embedder: model is required")
	}
	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		options = append(options, option.WithHTTPClient(httpClient))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIEmbedder{
		client:  openai.NewClient(options...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Model returns the configured embedding model.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Encode embeds all texts with a single request, reordering results by response index.
func (e *OpenAIEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	return encodeNonBlank(texts, func(inputs []string) ([][]float32, error) {
		response, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
			Model: e.model,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(response.Data) != len(inputs) {
			return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(inputs))
		}

		out := make([][]float32, len(inputs))
		for _, embedding := range response.Data {
			idx := int(embedding.Index)
			if idx < 0 || idx >= len(inputs) {
				return nil, fmt.Errorf("embedding index out of range: %d", embedding.Index)
			}
			vec := make([]float32, len(embedding.Embedding))
			for i, v := range embedding.Embedding {
				vec[i] = float32(v)
			}
			out[idx] = vec
		}
		e.logger.Debug("openai embeddings generated",
			"model", e.model,
			"inputs", len(inputs),
			"total_tokens", response.Usage.TotalTokens,
		)
		return out, nil
	})
}
