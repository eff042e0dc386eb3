package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// DefaultDimension is reported before the first embedding comes back.
const DefaultDimension = 768

// ErrNoEmbeddings is returned when the server answers with an empty data list.
var ErrNoEmbeddings = errors.New("no embeddings returned")

// LMStudio uses LM Studio's OpenAI-compatible embeddings endpoint.
// LM Studio needs an embedding model loaded (like nomic-embed-text).
type LMStudio struct {
	baseURL string
	client  *http.Client
	model   string

	mu        sync.Mutex
	dimension int
}

// NewLMStudio creates a new LM Studio embedder
func NewLMStudio(baseURL, model string) *LMStudio {
	if baseURL == "" {
		baseURL = "http://localhost:1234"
	}
	return &LMStudio{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		model:   model,
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates embedding for a single text
func (e *LMStudio) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one request and returns vectors in input order.
func (e *LMStudio) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("LM Studio error: %s", errorResp.Error.Message)
		}
		return nil, fmt.Errorf("LM Studio returned status %d", resp.StatusCode)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, ErrNoEmbeddings
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("asked for %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	out := make([][]float32, len(texts))
	for i, d := range embResp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}

	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(out[0])
	}
	e.mu.Unlock()

	return out, nil
}

// Dimension returns the embedding dimension, learned from the first response.
func (e *LMStudio) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		return DefaultDimension
	}
	return e.dimension
}

// Probe embeds a short string so Dimension reflects the loaded model.
func (e *LMStudio) Probe(ctx context.Context) (int, error) {
	if _, err := e.Embed(ctx, "dimension probe"); err != nil {
		return 0, err
	}
	return e.Dimension(), nil
}
