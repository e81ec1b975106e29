package root

import (
	"fmt"

	"github.com/campaignwatch/campaignwatch/internal/app"
	"github.com/campaignwatch/campaignwatch/internal/datastore"
	"github.com/spf13/cobra"
)

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := o.load()
			if err != nil {
				return err
			}
			log, closer := app.NewLogger(settings.Log)
			defer func() { _ = closer.Close() }()

			store, err := datastore.Open(settings.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", settings.Database.Type)
			return err
		},
	}
}
