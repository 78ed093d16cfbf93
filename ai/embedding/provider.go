// Package embedding implements the OpenAI-compatible embedding provider.
// It covers openai, siliconflow and ollama, which all speak the same
// embeddings endpoint.
package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hyphora/hyphora/ai"
)

type provider struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewProvider creates an EmbeddingService backed by any OpenAI-compatible
// endpoint. cfg may be nil, in which case every call fails with
// ai.ErrEmbeddingUnavailable so the pipeline degrades to text-only mode.
func NewProvider(cfg *ai.EmbeddingConfig) ai.EmbeddingService {
	if cfg == nil {
		return unavailableProvider{}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &provider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		// Hosted embedding APIs throttle around this order of magnitude.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (p *provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result: %w", ai.ErrEmbeddingUnavailable)
	}
	return vectors[0], nil
}

func (p *provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided: %w", ai.ErrEmbeddingUnavailable)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit wait: %w", ai.ErrEmbeddingUnavailable)
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %v: %w", err, ai.ErrEmbeddingUnavailable)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", ai.ErrEmbeddingUnavailable)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (p *provider) Dimensions() int {
	return p.dimensions
}

// unavailableProvider is the nil-safe stand-in when no embedding provider is
// configured.
type unavailableProvider struct{}

func (unavailableProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, ai.ErrEmbeddingUnavailable
}

func (unavailableProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ai.ErrEmbeddingUnavailable
}

func (unavailableProvider) Dimensions() int {
	return 0
}
