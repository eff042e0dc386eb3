// Package cli wires pacer's commands together.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/config"
	"github.com/billie-coop/pacer/internal/embedder"
	"github.com/billie-coop/pacer/internal/llm"
	"github.com/billie-coop/pacer/internal/logging"
	"github.com/billie-coop/pacer/internal/scheduler"
	"github.com/billie-coop/pacer/internal/vectordb"
)

// mockDimension is the vector size used with --offline.
const mockDimension = 384

type app struct {
	project  string
	logLevel string
	offline  bool

	cfg *config.Manager
	log *zap.Logger
}

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	a := &app{log: logging.Nop()}

	root := &cobra.Command{
		Use:   "pacer",
		Short: "Local code search and Q&A over LM Studio",
		Long: "pacer indexes a project into a local vector store, answers hybrid searches, " +
			"and asks local models questions with bounded parallelism.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.project, "project", "p", ".", "Project directory")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.offline, "offline", false, "Use the built-in hash embedder instead of LM Studio")

	root.AddCommand(
		newIndexCmd(a),
		newSearchCmd(a),
		newAskCmd(a),
		newConfigCmd(a),
		newModelsCmd(a),
	)

	return root
}

func (a *app) setup() error {
	abs, err := filepath.Abs(a.project)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	a.project = abs

	a.cfg = config.NewManager(abs)
	if err := a.cfg.Load(); err != nil {
		return err
	}

	logCfg := a.cfg.Get().Log
	if a.logLevel != "" {
		logCfg.Level = a.logLevel
	}
	// relative log files live under the project
	outputs := make([]string, len(logCfg.Outputs))
	for i, out := range logCfg.Outputs {
		if out == "stdout" || out == "stderr" {
			outputs[i] = out
			continue
		}
		outputs[i] = a.cfg.ResolvePath(out)
	}
	logCfg.Outputs = outputs

	log, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	a.log = log.With(zap.String("project", abs))
	return nil
}

func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	c := a.cfg.Get().Scheduler
	return scheduler.New(c.Concurrency,
		scheduler.WithMaxQueueSize(c.MaxQueueSize),
		scheduler.WithLogger(a.log.Named("scheduler")))
}

func (a *app) newClient() *llm.LMStudioClient {
	c := a.cfg.Get()
	client := llm.NewLMStudioClient()
	client.SetEndpoint(c.LMStudioURL)
	client.SetModel(c.Model)
	client.SetLogger(a.log.Named("llm"))
	return client
}

// newEmbedder returns the configured embedder with its dimension known.
func (a *app) newEmbedder(ctx context.Context) (embedder.Embedder, error) {
	if a.offline {
		return embedder.NewMock(mockDimension), nil
	}
	c := a.cfg.Get()
	e := embedder.NewLMStudio(c.LMStudioURL, c.EmbeddingModel)
	dim, err := e.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedding model unavailable (try --offline): %w", err)
	}
	a.log.Debug("embedder ready", zap.Int("dimension", dim))
	return e, nil
}

func (a *app) openStore(ctx context.Context, dim int) (vectordb.Store, error) {
	c := a.cfg.Get().Index
	switch c.Store {
	case "memory":
		a.log.Warn("memory store does not persist between commands")
		return vectordb.NewMemoryStore(dim), nil
	default:
		return vectordb.NewSQLiteStore(ctx, a.cfg.ResolvePath(c.DBPath), dim)
	}
}
