// Package root holds the campaignwatch command tree.
package root

import (
	"fmt"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/spf13/cobra"
)

type options struct {
	configFile string
	version    string
}

// New returns the root command with every subcommand attached.
func New(version string) *cobra.Command {
	o := &options{version: version}

	cmd := &cobra.Command{
		Use:   "campaignwatch",
		Short: "Alert evaluation and anomaly detection for campaign metrics",
		Long: `campaignwatch evaluates tenant alert configurations against campaign
metrics on a schedule, enriches matches with anomaly, trend and competitor
signals, and delivers notifications for the alerts that fire.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "Path to config file (default: ./config.yaml)")
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetVersionTemplate(fmt.Sprintf("campaignwatch version %s\n", version))

	cmd.AddCommand(
		newServeCmd(o),
		newEvaluateCmd(o),
		newMigrateCmd(o),
		newConfigCmd(o),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute(version string) error {
	return New(version).Execute()
}

func (o *options) load() (*conf.Settings, error) {
	return conf.Load(o.configFile)
}
