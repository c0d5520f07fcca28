package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	return NewOpenAIProviderFromClient(openai.NewClientWithConfig(cfg), "test-embed-model")
}

func TestEmbed_ParsesVectorAndModel(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-embed-model",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	})

	vector, model, err := p.Embed(context.Background(), "adds one to its argument")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "test-embed-model", model)
}

func TestEmbed_EmptyResponse_ReturnsError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []map[string]any{}})
	})

	_, _, err := p.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestEmbed_ProviderError_Propagates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "boom", "type": "server_error"}})
	})

	_, _, err := p.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewOpenAIProvider_DefaultsModel(t *testing.T) {
	p := NewOpenAIProvider("key", "")
	assert.Equal(t, DefaultModel, p.model)
}
