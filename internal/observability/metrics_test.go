package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.RecordEvaluation(OutcomeTriggered)
	m.RecordEvaluation(OutcomeTriggered)
	m.RecordEvaluation(OutcomeCooldown)
	m.RecordMLOutcome("evaluation_error")
	m.RecordTriggered("high")
	m.RecordNotification("slack", nil)
	m.RecordNotification("slack", errors.NewStd("timeout"))
	m.RecordError("model")
	m.RecordPruned(3)
	m.RecordPruned(0)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues(OutcomeTriggered)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues(OutcomeCooldown)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.mlOutcomes.WithLabelValues("evaluation_error")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.triggered.WithLabelValues("high")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("slack", "success")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("slack", "failure")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("model")), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.pruned), 0)
}

func TestMetrics_CycleHistogram(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.ObserveCycle("t1", 20*time.Millisecond)
	m.ObserveCycle("t1", 40*time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "campaignwatch_cycle_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 0.06, hist.GetSampleSum(), 1e-9)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.RecordEvaluation(OutcomeNotDue)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `campaignwatch_evaluations_total{outcome="not_due"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvaluation(OutcomeTriggered)
		m.RecordMLOutcome("signal")
		m.RecordTriggered("low")
		m.RecordNotification("log", nil)
		m.RecordError("config")
		m.ObserveCycle("t", time.Second)
		m.RecordPruned(1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
