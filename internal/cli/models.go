package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models LM Studio has available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := a.newClient().ListModels(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ok, err := encode(w, output, models); ok {
				return err
			}
			if output != FormatText && output != "" {
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
			}
			if len(models) == 0 {
				fmt.Fprintln(w, "No models loaded in LM Studio.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tSIZE\tKIND")
			for _, m := range models {
				kind := "chat"
				if m.Embedding {
					kind = "embedding"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Size, kind)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", FormatText, "Output format: text, json or yaml")
	return cmd
}
