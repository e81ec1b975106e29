package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/datastore"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Database.Type = "sqlite"
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "cw.db")
	s.Engine.CycleInterval = conf.Duration(time.Minute)
	s.Engine.MaxConcurrentTenants = 2
	s.Anomaly.EnsembleSize = 50
	s.Anomaly.SubSampleSize = 64
	s.Anomaly.Contamination = 0.1
	s.Anomaly.MinTrainingPoints = 100
	s.MetricSource.Type = "sql"
	s.Competitor.Type = "static"
	s.Competitor.Benchmarks = map[string]float64{"ctr": 2.0}
	s.Notification.QueueSize = 10
	return s
}

func TestBuild_EndToEnd(t *testing.T) {
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	ctx := context.Background()

	a, err := Build(ctx, testSettings(t), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, a.Samples.RecordSamples(ctx, []entities.MetricSample{
		{TenantID: "tenant-a", MetricName: "ctr", Timestamp: now.Add(-2 * time.Hour), Value: 2.4},
		{TenantID: "tenant-a", MetricName: "ctr", Timestamp: now.Add(-time.Minute), Value: 1.5},
	}))

	router := a.Router()
	body := `{"metric_name": "ctr", "condition_operator": "LESS_THAN", "threshold": 2.0, "competitor_enabled": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/tenant-a/configs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cfg entities.AlertConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))

	// Make the new configuration due immediately.
	due := now.Add(-time.Second)
	cfg.NextCheck = &due
	require.NoError(t, a.Configs.UpdateConfig(ctx, &cfg))

	created, err := a.Engine.RunCycle(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.InDelta(t, 1.5, created[0].MetricValue, 1e-9)
	assert.InDelta(t, -25.0, created[0].DeviationPercentage, 1e-9)
	assert.Contains(t, created[0].Context, "competitor")

	stored, err := a.Instances.GetInstance(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", stored.Status)

	got, err := a.Configs.GetConfig(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TriggerCount)
}

func TestBuild_InvalidMetricSource(t *testing.T) {
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	s := testSettings(t)
	s.MetricSource.Type = "graphite"

	_, err := Build(context.Background(), s, log)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cw.log")
	log, closer := NewLogger(conf.LogSettings{Level: "debug", JSON: true, File: path, MaxSizeMB: 1})
	log.Info("hello", logger.String("k", "v"))
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}

func TestWire_EngineFailureStopsDelivery(t *testing.T) {
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	s := testSettings(t)
	s.Engine.CompetitorTimeout = conf.Duration(2 * time.Second)

	store, err := datastore.Open(s.Database, log)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	// A closed store makes the startup audit fail.
	require.NoError(t, store.Close())

	a, err := wire(context.Background(), s, store, log)
	assert.Error(t, err)
	assert.Nil(t, a)
}

func TestStopDelivery(t *testing.T) {
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	a := &App{
		Notifier: notification.NewService(notification.Config{QueueSize: 1}, log, nil),
		mqtt:     notification.NewMQTTProvider(conf.MQTTSettings{Broker: "tcp://127.0.0.1:1"}, log),
	}

	a.stopDelivery()
	err := a.Notifier.Notify(context.Background(), &notification.Request{ID: "n1", Channels: []string{"log"}})
	assert.True(t, errors.Is(err, notification.ErrStopped))

	// Stopping twice is harmless.
	a.stopDelivery()
}
