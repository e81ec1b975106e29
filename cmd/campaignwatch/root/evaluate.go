package root

import (
	"encoding/json"

	"github.com/campaignwatch/campaignwatch/internal/app"
	"github.com/spf13/cobra"
)

func newEvaluateCmd(o *options) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation cycle for a tenant and print the alerts it created",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := o.load()
			if err != nil {
				return err
			}
			log, closer := app.NewLogger(settings.Log)
			defer func() { _ = closer.Close() }()

			a, err := app.Build(cmd.Context(), settings, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			created, err := a.Engine.RunCycle(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(created)
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant to evaluate")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
