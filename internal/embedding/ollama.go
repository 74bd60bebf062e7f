package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewOllamaEmbedder builds an embedder against cfg.BaseURL. httpClient may be nil.
func NewOllamaEmbedder(cfg OllamaConfig, httpClient *http.Client, logger *slog.Logger) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedder: model is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.APIKey != "" {
		rt := httpClient.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		authed := *httpClient
		authed.Transport = &headerTransport{
			headers: map[string]string{"Authorization": "Bearer " + cfg.APIKey},
			rt:      rt,
		}
		httpClient = &authed
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaEmbedder{
		client:  api.NewClient(u, httpClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Model returns the configured embedding model.
func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Encode embeds all texts with a single request.
func (e *OllamaEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	return encodeNonBlank(texts, func(inputs []string) ([][]float32, error) {
		res, err := e.client.Embed(ctx, &api.EmbedRequest{
			Model: e.model,
			Input: inputs,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		e.logger.Debug("ollama embeddings generated",
			"model", e.model,
			"inputs", len(inputs),
			"prompt_tokens", res.PromptEvalCount,
			"duration", res.TotalDuration,
		)
		return res.Embeddings, nil
	})
}
