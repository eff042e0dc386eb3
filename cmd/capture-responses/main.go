// Command capture-responses records how a local model streams marker
// answers: the raw chunks as they arrive plus the routed answer text. The
// JSON files are useful for studying chunk boundaries around the marker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/config"
	"github.com/billie-coop/pacer/internal/llm"
	"github.com/billie-coop/pacer/internal/logging"
	"github.com/billie-coop/pacer/internal/orchestrator"
	"github.com/billie-coop/pacer/internal/scheduler"
)

// CapturePrompt is one prompt to record.
type CapturePrompt struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// CapturedResponse represents a model's response to a prompt.
type CapturedResponse struct {
	CapturedAt  time.Time `json:"captured_at"`
	Model       string    `json:"model"`
	Marker      string    `json:"marker"`
	Prompt      string    `json:"prompt"`
	Chunks      []string  `json:"chunks"`
	Answer      string    `json:"answer"`
	MarkerFound bool      `json:"marker_found"`
	Error       string    `json:"error,omitempty"`
	Duration    float64   `json:"duration_seconds"`
}

// recorder keeps every raw chunk per prompt while passing them through.
type recorder struct {
	llm.Client

	mu     sync.Mutex
	chunks map[string][]string
}

func (r *recorder) Stream(ctx context.Context, msgs []llm.Message, onChunk func(string)) error {
	prompt := msgs[len(msgs)-1].Content
	return r.Client.Stream(ctx, msgs, func(s string) {
		r.mu.Lock()
		r.chunks[prompt] = append(r.chunks[prompt], s)
		r.mu.Unlock()
		onChunk(s)
	})
}

func main() {
	var (
		endpoint    = flag.String("endpoint", "http://localhost:1234", "LM Studio base URL")
		model       = flag.String("model", "", "Model ID (default: whatever is loaded)")
		marker      = flag.String("marker", config.DefaultConfig().Marker, "Answer marker")
		concurrency = flag.Int("concurrency", 2, "Parallel requests")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: capture-responses [flags] <output-dir>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logging.Setup(config.DefaultConfig().Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), log, flag.Arg(0), *endpoint, *model, *marker, *concurrency); err != nil {
		log.Fatal("capture failed", zap.Error(err))
	}
}

func run(ctx context.Context, log *zap.Logger, outputDir, endpoint, model, marker string, concurrency int) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	client := llm.NewLMStudioClient()
	client.SetEndpoint(endpoint)
	client.SetModel(model)
	if err := client.HealthCheck(ctx); err != nil {
		return err
	}

	sched, err := scheduler.New(concurrency, scheduler.WithLogger(log))
	if err != nil {
		return err
	}

	rec := &recorder{Client: client, chunks: map[string][]string{}}
	prompts := make([]string, len(capturePrompts))
	for i, p := range capturePrompts {
		prompts[i] = p.Prompt
	}

	answers, err := orchestrator.Fanout(ctx, sched, rec, prompts, marker,
		orchestrator.WithSystemPrompt(orchestrator.SystemPrompt(marker)),
		orchestrator.WithLabel("capture"),
		orchestrator.WithLogger(log))
	if err != nil {
		return err
	}

	now := time.Now()
	for i, ans := range answers {
		p := capturePrompts[i]
		resp := CapturedResponse{
			CapturedAt:  now,
			Model:       model,
			Marker:      marker,
			Prompt:      p.Prompt,
			Chunks:      rec.chunks[p.Prompt],
			Answer:      ans.Text,
			MarkerFound: ans.Found,
			Duration:    ans.Duration.Seconds(),
		}
		if ans.Err != nil {
			resp.Error = ans.Err.Error()
		}

		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(outputDir, p.Name+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		log.Info("captured", zap.String("prompt", p.Name), zap.Bool("marker_found", ans.Found), zap.Int("chunks", len(resp.Chunks)))
	}
	return nil
}
