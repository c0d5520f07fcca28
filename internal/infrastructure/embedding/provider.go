// Package embedding implements the Embedding Provider adapter (SPEC_FULL.md
// A5): production of embedding vectors for semantic-layer text, called only
// from the propagation engine's EmbeddingInvalidated transform, never from
// the mutation commit path (spec.md §9).
package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-3-small"

// DefaultTimeout bounds a single Embed call so a stalled provider can't
// block a flush indefinitely (spec.md §5's "awaiting external
// embedding/LLM providers" suspension point).
const DefaultTimeout = 15 * time.Second

// Provider is satisfied by anything that can turn text into a vector; it
// matches propagation.EmbeddingRefresher structurally so this package never
// needs to import propagation.
type Provider interface {
	Embed(ctx context.Context, text string) (vector []float32, model string, err error)
}

// OpenAIProvider calls the OpenAI embeddings endpoint via go-openai.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIProvider builds a provider from an API key. model defaults to
// DefaultModel when empty.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return NewOpenAIProviderFromClient(openai.NewClient(apiKey), model)
}

// NewOpenAIProviderFromClient wraps an already-configured client — used in
// tests to point at a local stand-in server via openai.ClientConfig.BaseURL.
func NewOpenAIProviderFromClient(client *openai.Client, model string) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIProvider{client: client, model: model, timeout: DefaultTimeout}
}

// Embed requests a single embedding vector for text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, "", err
	}
	if len(resp.Data) == 0 {
		return nil, "", errors.New("embedding: empty response from provider")
	}
	return resp.Data[0].Embedding, p.model, nil
}
