package competitor

import "context"

// StaticProvider serves configured per metric benchmarks.
type StaticProvider struct {
	benchmarks  map[string]float64
	marketShare float64
}

// NewStaticProvider creates a provider from metric benchmarks and a fixed
// market share estimate.
func NewStaticProvider(benchmarks map[string]float64, marketShare float64) *StaticProvider {
	return &StaticProvider{benchmarks: benchmarks, marketShare: marketShare}
}

func (p *StaticProvider) Signal(_ context.Context, req Request) (*Signal, error) {
	benchmark, ok := p.benchmarks[req.MetricName]
	if !ok {
		return nil, nil
	}
	return &Signal{
		CompetitorMetrics:   map[string]float64{req.MetricName: benchmark},
		MarketShareEstimate: p.marketShare,
		ThreatLevel:         ThreatFor(req.CurrentValue, benchmark),
	}, nil
}
