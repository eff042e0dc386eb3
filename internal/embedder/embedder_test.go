package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestMock_Deterministic(t *testing.T) {
	m := NewMock(64)
	a, err := m.Embed(context.Background(), "func main")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "func main")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, dot(a, a), 1e-5)
}

func TestMock_SharedWordsAreCloser(t *testing.T) {
	m := NewMock(256)
	ctx := context.Background()
	q, _ := m.Embed(ctx, "scheduler queue")
	near, _ := m.Embed(ctx, "the scheduler drains its queue")
	far, _ := m.Embed(ctx, "markdown renderer theme")

	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestMock_DefaultDimension(t *testing.T) {
	assert.Equal(t, 384, NewMock(0).Dimension())
}

func TestMock_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLMStudio_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic", req.Model)

		// answer out of order to check index handling
		fmt.Fprint(w, `{"data":[{"embedding":[0,1,0],"index":1},{"embedding":[1,0,0],"index":0}]}`)
	}))
	defer srv.Close()

	e := NewLMStudio(srv.URL, "nomic")
	assert.Equal(t, DefaultDimension, e.Dimension())

	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, out)
	assert.Equal(t, 3, e.Dimension())
}

func TestLMStudio_ErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"no embedding model loaded"}}`)
	}))
	defer srv.Close()

	_, err := NewLMStudio(srv.URL, "").Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedding model loaded")
}

func TestLMStudio_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	_, err := NewLMStudio(srv.URL, "").Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEmbeddings)
}
