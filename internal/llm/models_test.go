package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectModelSize(t *testing.T) {
	tests := map[string]ModelSize{
		"qwen2.5-0.5b-instruct":      SizeXS,
		"smollm-360m":                SizeXS,
		"llama-3.2-1b-instruct":      SizeXS,
		"gemma-2-2b-it":              SizeS,
		"phi-3-mini-4k-instruct":     SizeS,
		"qwen2.5-coder-7b-instruct":  SizeM,
		"mistral-nemo-instruct":      SizeM,
		"deepseek-coder-v2-lite-16b": SizeL,
		"qwen2.5-32b-instruct":       SizeL,
		"mixtral-8x7b-instruct":      SizeM,
		"mixtral-8x22b-instruct":     SizeL,
		"mixtral-instruct":           SizeL,
		"llama-3.3-70b-instruct":     SizeXL,
		"some-unknown-model":         SizeM,
	}
	for id, want := range tests {
		assert.Equal(t, want, DetectModelSize(id), id)
	}
}

func TestIsEmbeddingModel(t *testing.T) {
	assert.True(t, IsEmbeddingModel("text-embedding-nomic-embed-text-v1.5"))
	assert.True(t, IsEmbeddingModel("bge-small-en"))
	assert.False(t, IsEmbeddingModel("qwen2.5-7b-instruct"))
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":"qwen2.5-7b-instruct"},{"id":"nomic-embed-text"}]}`)
	}))
	defer srv.Close()

	c := NewLMStudioClient()
	c.SetEndpoint(srv.URL)
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	assert.Equal(t, "nomic-embed-text", models[0].ID)
	assert.True(t, models[0].Embedding)
	assert.Equal(t, Model{ID: "qwen2.5-7b-instruct", Size: SizeM}, models[1])
}
