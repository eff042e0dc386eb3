package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/billie-coop/pacer/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		k      int
		output string
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Hybrid keyword and vector search over the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg.Get().Search
			if k <= 0 {
				k = cfg.K
			}

			emb, err := a.newEmbedder(ctx)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx, emb.Dimension())
			if err != nil {
				return err
			}
			defer store.Close()

			s := search.New(store, emb,
				search.WithCandidates(cfg.Candidates),
				search.WithLogger(a.log.Named("search")))

			results, err := s.Search(ctx, strings.Join(args, " "), k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return writeResults(cmd.OutOrStdout(), output, results)
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of results (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", FormatText, "Output format: text, json or yaml")
	return cmd
}
