package root

import (
	"github.com/spf13/cobra"
)

func newConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := o.load()
			if err != nil {
				return err
			}
			return settings.WriteYAML(cmd.OutOrStdout())
		},
	}
}
