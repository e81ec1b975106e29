// Package app assembles the service from settings: storage, metric and
// competitor providers, anomaly models, notification delivery, the alerting
// engine and the HTTP API.
package app

import (
	"context"
	"io"

	"github.com/campaignwatch/campaignwatch/internal/alerting"
	"github.com/campaignwatch/campaignwatch/internal/anomaly"
	"github.com/campaignwatch/campaignwatch/internal/api"
	"github.com/campaignwatch/campaignwatch/internal/competitor"
	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/datastore"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/metricsource"
	"github.com/campaignwatch/campaignwatch/internal/notification"
	"github.com/campaignwatch/campaignwatch/internal/observability"
	"github.com/labstack/echo/v4"
)

// NewLogger builds the process logger from log settings. The closer flushes
// the rotating log file, if any.
func NewLogger(s conf.LogSettings) (logger.Logger, io.Closer) {
	w, closer := logger.FileConfig{
		Path:       s.File,
		MaxSizeMB:  s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
		MaxAgeDays: s.MaxAgeDays,
		Compress:   s.Compress,
	}.Writer()
	return logger.NewSlogLogger(w, logger.ParseLevel(s.Level), &logger.Options{JSON: s.JSON}), closer
}

// App is a fully wired service.
type App struct {
	Settings  *conf.Settings
	Store     *datastore.Manager
	Configs   repository.AlertConfigRepository
	Instances repository.AlertInstanceRepository
	Models    repository.AnomalyModelRepository
	Samples   repository.MetricSampleRepository
	Metrics   *observability.Metrics
	Registry  *anomaly.Registry
	Notifier  *notification.Service
	Engine    *alerting.Engine

	mqtt *notification.MQTTProvider
	log  logger.Logger
}

// Build opens and migrates the store and wires every component. It starts
// the notification worker but not the scheduler.
func Build(ctx context.Context, s *conf.Settings, log logger.Logger) (*App, error) {
	store, err := datastore.Open(s.Database, log)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	a, err := wire(ctx, s, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// wire builds the components on top of an opened store.
func wire(ctx context.Context, s *conf.Settings, store *datastore.Manager, log logger.Logger) (*App, error) {
	a := &App{Settings: s, Store: store, log: log}
	db := store.DB()
	a.Configs = repository.NewAlertConfigRepository(db)
	a.Instances = repository.NewAlertInstanceRepository(db)
	a.Models = repository.NewAnomalyModelRepository(db)
	a.Samples = repository.NewMetricSampleRepository(db)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = metrics

	source, err := newMetricSource(s.MetricSource, a.Samples, log)
	if err != nil {
		return nil, err
	}

	a.Registry = anomaly.NewRegistry(anomaly.Options{
		EnsembleSize:      s.Anomaly.EnsembleSize,
		SubSampleSize:     s.Anomaly.SubSampleSize,
		Contamination:     s.Anomaly.Contamination,
		MinTrainingPoints: s.Anomaly.MinTrainingPoints,
		ModelTTL:          s.Anomaly.ModelTTL.Std(),
		Seed:              s.Anomaly.Seed,
	}, log, anomaly.WithStore(a.Models))

	a.Notifier, a.mqtt, err = notification.NewFromSettings(s.Notification, s.Engine.NotifyTimeout, log, metrics)
	if err != nil {
		return nil, err
	}

	a.Engine, err = alerting.Initialize(ctx, s.Engine, alerting.Deps{
		Configs:     a.Configs,
		Instances:   a.Instances,
		Metrics:     source,
		Detector:    a.Registry,
		Competitors: newCompetitorProvider(s.Competitor),
		Notifier:    a.Notifier,
	}, log, alerting.WithMetrics(metrics))
	if err != nil {
		a.stopDelivery()
		return nil, err
	}
	return a, nil
}

// stopDelivery drains the notification queue and disconnects MQTT.
func (a *App) stopDelivery() {
	if a.Notifier != nil {
		a.Notifier.Stop()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
}

func newMetricSource(s conf.MetricSourceSettings, samples repository.MetricSampleRepository, log logger.Logger) (metricsource.Provider, error) {
	switch s.Type {
	case "prometheus":
		return metricsource.NewPrometheusProvider(s.Prometheus, log)
	case "", "sql":
		return metricsource.NewSQLProvider(samples), nil
	default:
		return nil, errors.Newf("unsupported metric source %q", s.Type).
			Component("app").
			Category(errors.CategoryConfig).
			Build()
	}
}

// newCompetitorProvider returns nil when competitor signals are disabled.
func newCompetitorProvider(s conf.CompetitorSettings) competitor.Provider {
	switch s.Type {
	case "static":
		return competitor.NewStaticProvider(s.Benchmarks, s.MarketShare)
	case "http":
		return competitor.NewHTTPProvider(s.HTTP.URL, s.HTTP.Timeout.Std(), s.HTTP.CacheTTL.Std(), nil)
	default:
		return nil
	}
}

// Router returns an echo instance serving the API for this app.
func (a *App) Router() *echo.Echo {
	e := api.NewEcho(a.log)
	api.New(e, api.Deps{
		Configs:   a.Configs,
		Instances: a.Instances,
		Models:    a.Models,
		Engine:    a.Engine,
		Notifier:  a.Notifier,
		Metrics:   a.Metrics,
	}, a.log)
	return e
}

// Close stops background work and releases connections. The engine must
// already be stopped.
func (a *App) Close() error {
	a.stopDelivery()
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
