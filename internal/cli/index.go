package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/files"
	"github.com/billie-coop/pacer/internal/indexer"
	"github.com/billie-coop/pacer/internal/tui"
	"github.com/billie-coop/pacer/internal/watcher"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		showTUI bool
		reset   bool
		watch   bool
		delay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "index [paths...]",
		Short: "Chunk and embed project files",
		Long:  "Index every indexable file in the project, or only the given paths (relative to the project).",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			emb, err := a.newEmbedder(ctx)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx, emb.Dimension())
			if err != nil {
				return err
			}
			defer store.Close()

			if reset {
				if err := store.Clear(ctx); err != nil {
					return fmt.Errorf("reset index: %w", err)
				}
			}

			sched, err := a.newScheduler()
			if err != nil {
				return err
			}
			ix := indexer.New(a.project, sched, emb, store,
				indexer.WithChunkLines(a.cfg.Get().Index.ChunkLines),
				indexer.WithLogger(a.log.Named("indexer")))

			paths := files.Filter(args)
			if len(args) == 0 {
				if paths, err = files.Discover(a.project); err != nil {
					return fmt.Errorf("discover files: %w", err)
				}
			}
			if len(paths) == 0 && !watch {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to index.")
				return nil
			}

			var sum indexer.Summary
			if showTUI {
				sum, err = runIndexTUI(ctx, ix, sched, paths)
			} else {
				sum, err = runIndexPlain(ctx, ix, paths)
			}

			out := cmd.OutOrStdout()
			printSummary(out, sum)
			if err != nil || !watch {
				return err
			}
			return watchProject(ctx, a, ix, delay, out)
		},
	}

	cmd.Flags().BoolVar(&showTUI, "tui", false, "Show a live progress view")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear the index before indexing")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and reindex files as they change")
	cmd.Flags().DurationVar(&delay, "debounce", watcher.DefaultDelay, "Quiet period before reindexing changed files")
	return cmd
}

// runIndexPlain returns once the running files finish when ctx ends; queued
// and unsubmitted files are counted as cancelled.
func runIndexPlain(ctx context.Context, ix *indexer.Indexer, paths []string) (indexer.Summary, error) {
	return ix.IndexFiles(ctx, paths)
}

func runIndexTUI(ctx context.Context, ix *indexer.Indexer, src tui.StatsSource, paths []string) (indexer.Summary, error) {
	view := tui.NewProgress("Indexing", len(paths), src, ix.Cancel)
	program := tea.NewProgram(view, tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	type result struct {
		sum indexer.Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := ix.IndexFiles(ctx, paths)
		done <- result{sum, err}
		program.Send(tui.Finished(err))
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		ix.Cancel()
		r := <-done
		return r.sum, errors.Join(err, r.err)
	}
	if view.Aborted() {
		ix.Cancel()
	}
	r := <-done
	return r.sum, r.err
}

func printSummary(w io.Writer, sum indexer.Summary) {
	fmt.Fprintf(w, "Indexed %d files (%d chunks), skipped %d, failed %d, cancelled %d\n",
		sum.Indexed, sum.Chunks, sum.Skipped, sum.Failed, sum.Cancelled)
}

// watchProject reindexes changed files until ctx ends. Failures are
// reported and watching continues.
func watchProject(ctx context.Context, a *app, ix *indexer.Indexer, delay time.Duration, out io.Writer) error {
	var mu sync.Mutex
	w, err := watcher.New(a.project, delay, func(paths []string) {
		sum, err := ix.Sync(ctx, paths)
		mu.Lock()
		defer mu.Unlock()
		printSummary(out, sum)
		if err != nil {
			a.log.Warn("reindex failed", zap.Error(err))
		}
	}, watcher.WithLogger(a.log.Named("watcher")))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Watching for changes (ctrl+c to stop)…")
	return w.Run(ctx)
}
