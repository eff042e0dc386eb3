package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrNoChoices is returned when LM Studio answers without any choices.
var ErrNoChoices = errors.New("no response from LM Studio")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client interface for LLM operations.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message, onChunk func(string)) error
}

// LMStudioClient implements the Client interface for LM Studio's
// OpenAI-compatible API.
type LMStudioClient struct {
	client  *http.Client
	baseURL string
	model   string
	log     *zap.Logger
}

// NewLMStudioClient creates a new LM Studio client.
func NewLMStudioClient() *LMStudioClient {
	return &LMStudioClient{
		baseURL: "http://localhost:1234",
		model:   "", // Will use whatever model is loaded
		client:  &http.Client{},
		log:     zap.NewNop(),
	}
}

// CompleteOptions contains options for completion requests.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
	ContextSize int // n_ctx for LM Studio
}

// DefaultCompleteOptions returns default options.
func DefaultCompleteOptions() CompleteOptions {
	return CompleteOptions{
		Temperature: 0.7,
		MaxTokens:   -1,
		ContextSize: 0, // 0 means use model default
	}
}

// Complete sends messages and returns the full response.
func (c *LMStudioClient) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.CompleteWithOptions(ctx, messages, DefaultCompleteOptions())
}

// CompleteWithOptions sends messages with custom options and returns the full response.
func (c *LMStudioClient) CompleteWithOptions(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	resp, err := c.post(ctx, c.payload(messages, opts, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}

	if len(result.Choices) > 0 {
		return result.Choices[0].Message.Content, nil
	}

	return "", ErrNoChoices
}

// Stream sends messages and calls onChunk with each content delta.
func (c *LMStudioClient) Stream(ctx context.Context, messages []Message, onChunk func(string)) error {
	resp, err := c.post(ctx, c.payload(messages, DefaultCompleteOptions(), true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Parse SSE stream
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}

		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.log.Debug("skipping malformed SSE chunk", zap.Error(err))
			continue
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onChunk(chunk.Choices[0].Delta.Content)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

func (c *LMStudioClient) payload(messages []Message, opts CompleteOptions, stream bool) map[string]any {
	payload := map[string]any{
		"messages":    messages,
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
		"stream":      stream,
	}
	if c.model != "" {
		payload["model"] = c.model
	}
	if opts.ContextSize > 0 {
		payload["n_ctx"] = opts.ContextSize
	}
	return payload
}

func (c *LMStudioClient) post(ctx context.Context, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("LM Studio returned status %d but failed to read body: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("LM Studio error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// HealthCheck checks if LM Studio is running.
func (c *LMStudioClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("LM Studio not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LM Studio returned status %d", resp.StatusCode)
	}

	return nil
}

// SetModel sets the model to use for completions.
func (c *LMStudioClient) SetModel(modelID string) {
	c.model = modelID
}

// SetEndpoint sets the base URL for the LM Studio API.
func (c *LMStudioClient) SetEndpoint(endpoint string) {
	c.baseURL = strings.TrimRight(endpoint, "/")
}

// SetLogger sets the logger used for stream diagnostics.
func (c *LMStudioClient) SetLogger(log *zap.Logger) {
	if log != nil {
		c.log = log
	}
}
