package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/billie-coop/pacer/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings in .pacer/config.json",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get [key]",
			Short: "Print one setting, or all of them",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					v, err := a.cfg.Lookup(args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, v)
					return nil
				}
				for _, key := range config.Keys() {
					v, err := a.cfg.Lookup(key)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-26s %s\n", key, v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Path())
			},
		},
	)
	return cmd
}
