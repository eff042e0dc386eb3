package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/llm"
	"github.com/billie-coop/pacer/internal/orchestrator"
	"github.com/billie-coop/pacer/internal/search"
	"github.com/billie-coop/pacer/internal/tui"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		samples  int
		contextK int
		render   bool
		width    int
	)

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a local model about the project",
		Long: "Retrieve relevant code, then ask the model. Only the text after the configured " +
			"marker is shown. With --samples, several answers are generated in parallel.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")
			cfg := a.cfg.Get()
			out := cmd.OutOrStdout()

			var hits []search.Result
			if contextK > 0 {
				emb, err := a.newEmbedder(ctx)
				if err != nil {
					return err
				}
				store, err := a.openStore(ctx, emb.Dimension())
				if err != nil {
					return err
				}
				hits, err = search.New(store, emb, search.WithCandidates(cfg.Search.Candidates)).Search(ctx, question, contextK)
				store.Close()
				if err != nil {
					return fmt.Errorf("retrieve context: %w", err)
				}
				a.log.Debug("retrieved context", zap.Int("chunks", len(hits)))
			}

			client := a.newClient()
			system := orchestrator.SystemPrompt(cfg.Marker)
			prompt := orchestrator.QuestionPrompt(question, hits)

			if samples <= 1 {
				return askOne(cmd, client, system, prompt, cfg.Marker, render, width)
			}

			sched, err := a.newScheduler()
			if err != nil {
				return err
			}
			prompts := make([]string, samples)
			for i := range prompts {
				prompts[i] = prompt
			}
			answers, err := orchestrator.Fanout(ctx, sched, client, prompts, cfg.Marker,
				orchestrator.WithSystemPrompt(system),
				orchestrator.WithLabel("ask"),
				orchestrator.WithLogger(a.log.Named("orchestrator")))
			if err != nil {
				return err
			}

			failed := 0
			for _, ans := range answers {
				fmt.Fprintf(out, "── answer %d (%s) ──\n", ans.Index+1, ans.Duration.Round(time.Millisecond))
				switch {
				case ans.Err != nil:
					failed++
					fmt.Fprintf(out, "error: %v\n\n", ans.Err)
				case !ans.Found:
					fmt.Fprintf(out, "(model never wrote %s)\n\n", cfg.Marker)
				default:
					if err := printAnswer(out, ans.Text, render, width); err != nil {
						return err
					}
					fmt.Fprintln(out)
				}
			}
			if failed == len(answers) {
				return fmt.Errorf("all %d model calls failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&samples, "samples", "n", 1, "Number of answers to generate in parallel")
	cmd.Flags().IntVar(&contextK, "context", 5, "Chunks of retrieved code to include (0 disables retrieval)")
	cmd.Flags().BoolVar(&render, "render", false, "Render the answer as markdown")
	cmd.Flags().IntVar(&width, "width", 100, "Wrap width for --render")
	return cmd
}

// askOne streams the routed answer straight to the terminal, unless it has
// to be buffered for markdown rendering.
func askOne(cmd *cobra.Command, client llm.Client, system, prompt, marker string, render bool, width int) error {
	out := cmd.OutOrStdout()
	msgs := orchestrator.Messages(system, prompt)

	var buf strings.Builder
	found, err := llm.StreamAfterMarker(cmd.Context(), client, msgs, marker, func(s string) {
		if render {
			buf.WriteString(s)
			return
		}
		io.WriteString(out, s)
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if !found {
		return fmt.Errorf("model never wrote %s", marker)
	}
	if render {
		return printAnswer(out, strings.TrimSpace(buf.String()), true, width)
	}
	fmt.Fprintln(out)
	return nil
}

func printAnswer(w io.Writer, text string, render bool, width int) error {
	if !render {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	rendered, err := tui.RenderMarkdown(text, width)
	if err != nil {
		return fmt.Errorf("render answer: %w", err)
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
