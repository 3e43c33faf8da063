package cli

import "github.com/spf13/cobra"

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Write(cmd.OutOrStdout())
		},
	}
}
