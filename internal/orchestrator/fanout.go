// Package orchestrator runs several model calls in parallel under one
// scheduler and collects the text each model gives after its answer marker.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/llm"
	"github.com/billie-coop/pacer/internal/scheduler"
	"github.com/billie-coop/pacer/internal/stream"
)

// Answer is the outcome of one prompt.
type Answer struct {
	Index    int           `json:"index"`
	Text     string        `json:"text"`
	Found    bool          `json:"marker_found"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

type config struct {
	system  string
	label   string
	log     *zap.Logger
	onChunk func(index int, text string)
}

// Option configures Fanout.
type Option func(*config)

// WithSystemPrompt prepends a system message to every prompt.
func WithSystemPrompt(s string) Option {
	return func(c *config) { c.system = s }
}

// WithLabel sets the scheduler label for each call.
func WithLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithChunkHandler receives routed answer text as it streams, tagged with
// the prompt index. It may be called from several goroutines at once.
func WithChunkHandler(fn func(index int, text string)) Option {
	return func(c *config) { c.onChunk = fn }
}

// Fanout submits one streaming call per prompt and waits for all of them.
// Answers come back in prompt order. A failed call is reported in its
// Answer; the returned error is only for setup problems or ctx ending.
func Fanout(ctx context.Context, sched *scheduler.Scheduler, client llm.Client, prompts []string, marker string, opts ...Option) ([]Answer, error) {
	if marker == "" {
		return nil, stream.ErrEmptyMarker
	}
	cfg := config{label: "fanout", log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	answers := make([]Answer, len(prompts))
	handles := make([]*scheduler.Handle[Answer], len(prompts))

	for i, prompt := range prompts {
		i := i
		msgs := Messages(cfg.system, prompt)
		task := func(ctx context.Context) (Answer, error) {
			start := time.Now()
			var sb strings.Builder
			found, err := llm.StreamAfterMarker(ctx, client, msgs, marker, func(s string) {
				sb.WriteString(s)
				if cfg.onChunk != nil {
					cfg.onChunk(i, s)
				}
			})
			return Answer{
				Index:    i,
				Text:     strings.TrimSpace(sb.String()),
				Found:    found,
				Duration: time.Since(start),
			}, err
		}

		h, err := scheduler.Submit(sched, ctx, task,
			scheduler.WithLabel(cfg.label),
			scheduler.WithMetadata("prompt", i))
		if err != nil {
			answers[i] = Answer{Index: i, Err: err}
			continue
		}
		handles[i] = h
	}

	for i, h := range handles {
		if h == nil {
			continue
		}
		a, err := h.Wait(ctx)
		if err != nil && ctx.Err() != nil {
			return answers, ctx.Err()
		}
		a.Index = i
		a.Err = err
		answers[i] = a
		if err != nil && !errors.Is(err, scheduler.ErrCancelled) {
			cfg.log.Warn("model call failed", zap.Int("prompt", i), zap.Error(err))
		}
	}

	return answers, nil
}

// Messages builds the chat for one prompt.
func Messages(system, prompt string) []llm.Message {
	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
	}
	return append(msgs, llm.Message{Role: "user", Content: prompt})
}
