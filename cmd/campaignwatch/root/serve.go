package root

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/campaignwatch/campaignwatch/internal/api"
	"github.com/campaignwatch/campaignwatch/internal/app"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/telemetry"
	"github.com/spf13/cobra"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.serve(cmd.Context())
		},
	}
}

func (o *options) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := o.load()
	if err != nil {
		return err
	}
	log, closer := app.NewLogger(settings.Log)
	defer func() { _ = closer.Close() }()

	flush, err := telemetry.Setup(settings.Sentry, o.version)
	if err != nil {
		log.Warn("error reporting disabled", logger.Error(err))
	} else {
		defer flush()
	}

	a, err := app.Build(ctx, settings, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown", logger.Error(err))
		}
	}()

	if err := a.Engine.Start(ctx); err != nil {
		return err
	}
	defer a.Engine.Stop()

	log.Info("campaignwatch started",
		logger.String("version", o.version),
		logger.Bool("http", settings.HTTP.Enabled))

	if settings.HTTP.Enabled {
		return api.Serve(ctx, a.Router(), settings.HTTP.Listen, log)
	}
	<-ctx.Done()
	return nil
}
