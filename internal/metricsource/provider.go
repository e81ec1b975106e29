// Package metricsource fetches the current value and recent history of a
// tenant metric.
package metricsource

import (
	"context"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
)

// Point is one observation of a metric.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricData is the result of a fetch. Historical is in ascending time order
// and includes the observation CurrentValue was taken from.
type MetricData struct {
	CurrentValue float64 `json:"current_value"`
	Historical   []Point `json:"historical"`
}

// Values returns the historical values in order.
func (d *MetricData) Values() []float64 {
	out := make([]float64, len(d.Historical))
	for i, p := range d.Historical {
		out[i] = p.Value
	}
	return out
}

// Since returns the historical points at or after t.
func (d *MetricData) Since(t time.Time) []Point {
	for i, p := range d.Historical {
		if !p.Timestamp.Before(t) {
			return d.Historical[i:]
		}
	}
	return nil
}

// Query selects one metric series ending at At and covering Lookback.
type Query struct {
	TenantID   string
	CampaignID string
	MetricName string
	Lookback   time.Duration
	At         time.Time
}

func (q Query) start() time.Time {
	return q.At.Add(-q.Lookback)
}

// Provider fetches metric data. Implementations return errors in the
// data-unavailable category when the series is missing or empty.
type Provider interface {
	Fetch(ctx context.Context, q Query) (*MetricData, error)
}

func unavailable(err error, component string, q Query) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryDataUnavailable).
		Context("tenant_id", q.TenantID).
		Context("metric", q.MetricName).
		Build()
}
