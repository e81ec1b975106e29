// Package competitor supplies the optional competitor benchmark signal
// attached to triggered alerts.
package competitor

import "context"

// Threat levels.
const (
	ThreatLow    = "low"
	ThreatMedium = "medium"
	ThreatHigh   = "high"
)

// Signal is the competitor context of one metric.
type Signal struct {
	CompetitorMetrics   map[string]float64 `json:"competitor_metrics"`
	MarketShareEstimate float64            `json:"market_share_estimate"`
	ThreatLevel         string             `json:"threat_level"`
}

// Request identifies the metric a signal is requested for.
type Request struct {
	TenantID     string
	CampaignID   string
	MetricName   string
	CurrentValue float64
}

// Provider returns the competitor signal for a request. A nil Signal with
// a nil error means no signal is available.
type Provider interface {
	Signal(ctx context.Context, req Request) (*Signal, error)
}

// ThreatFor grades how far a competitor benchmark is ahead of the current
// value: more than 20% ahead is high, any lead is medium.
func ThreatFor(current, benchmark float64) string {
	if current <= 0 {
		if benchmark > 0 {
			return ThreatHigh
		}
		return ThreatLow
	}
	gap := (benchmark - current) / current
	switch {
	case gap > 0.2:
		return ThreatHigh
	case gap > 0:
		return ThreatMedium
	default:
		return ThreatLow
	}
}
