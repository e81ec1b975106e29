// Package observability exposes engine counters on a private Prometheus
// registry. Every method is safe on a nil *Metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campaignwatch"

// Evaluation outcomes.
const (
	OutcomeNotDue          = "not_due"
	OutcomeCooldown        = "cooldown"
	OutcomeDataUnavailable = "data_unavailable"
	OutcomeConditionFalse  = "condition_false"
	OutcomeSuppressed      = "suppressed"
	OutcomeTriggered       = "triggered"
	OutcomeFailed          = "failed"
)

// Metrics holds the engine collectors.
type Metrics struct {
	registry *prometheus.Registry

	evaluations   *prometheus.CounterVec
	mlOutcomes    *prometheus.CounterVec
	triggered     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	errors        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	pruned        prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Alert configuration checks by outcome.",
		}, []string{"outcome"}),
		mlOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ml_outcomes_total",
			Help:      "Anomaly detector results by outcome.",
		}, []string{"outcome"}),
		triggered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Alert instances created by severity.",
		}, []string{"severity"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Engine errors by category.",
		}, []string{"category"}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one tenant evaluation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"tenant"}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_pruned_total",
			Help:      "Alert instances removed by retention cleanup.",
		}),
	}, nil
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordEvaluation(outcome string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordMLOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mlOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTriggered(severity string) {
	if m == nil {
		return
	}
	m.triggered.WithLabelValues(severity).Inc()
}

// RecordNotification implements notification.Recorder.
func (m *Metrics) RecordNotification(channel string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveCycle(tenant string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.WithLabelValues(tenant).Observe(d.Seconds())
}

func (m *Metrics) RecordPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
