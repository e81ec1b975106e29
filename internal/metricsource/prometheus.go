package metricsource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"golang.org/x/time/rate"
)

const (
	defaultPromTimeout = 10 * time.Second
	defaultPromStep    = time.Hour
)

// PrometheusProvider evaluates a per metric PromQL template with
// query_range. {{tenant}} and {{campaign}} in the template are replaced
// with the query's tenant and campaign.
type PrometheusProvider struct {
	api     promv1.API
	queries map[string]string
	step    time.Duration
	timeout time.Duration
	limiter *rate.Limiter
	log     logger.Logger
}

// PrometheusOption customizes a PrometheusProvider.
type PrometheusOption func(*api.Config)

// WithRoundTripper replaces the HTTP transport.
func WithRoundTripper(rt http.RoundTripper) PrometheusOption {
	return func(c *api.Config) { c.RoundTripper = rt }
}

// NewPrometheusProvider creates a provider for the server at settings.URL.
func NewPrometheusProvider(settings conf.PrometheusSettings, log logger.Logger, opts ...PrometheusOption) (*PrometheusProvider, error) {
	cfg := api.Config{Address: settings.URL}
	for _, o := range opts {
		o(&cfg)
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	p := &PrometheusProvider{
		api:     promv1.NewAPI(client),
		queries: settings.Queries,
		step:    settings.Step.Std(),
		timeout: settings.Timeout.Std(),
		log:     log.Module("metricsource.prometheus"),
	}
	if p.step <= 0 {
		p.step = defaultPromStep
	}
	if p.timeout <= 0 {
		p.timeout = defaultPromTimeout
	}
	if settings.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), max(settings.Burst, 1))
	}
	return p, nil
}

func (p *PrometheusProvider) render(q Query) (string, bool) {
	tmpl, ok := p.queries[q.MetricName]
	if !ok {
		return "", false
	}
	return strings.NewReplacer("{{tenant}}", q.TenantID, "{{campaign}}", q.CampaignID).Replace(tmpl), true
}

func (p *PrometheusProvider) Fetch(ctx context.Context, q Query) (*MetricData, error) {
	promql, ok := p.render(q)
	if !ok {
		return nil, unavailable(fmt.Errorf("no prometheus query configured for metric %s", q.MetricName), "metricsource.prometheus", q)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, unavailable(fmt.Errorf("rate limiter: %w", err), "metricsource.prometheus", q)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, warnings, err := p.api.QueryRange(ctx, promql, promv1.Range{
		Start: q.start(),
		End:   q.At,
		Step:  p.step,
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("query_range failed: %w", err), "metricsource.prometheus", q)
	}
	for _, w := range warnings {
		p.log.Warn("prometheus query warning", logger.String("metric", q.MetricName), logger.String("warning", w))
	}

	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, unavailable(fmt.Errorf("unexpected result type %s", value.Type()), "metricsource.prometheus", q)
	}
	if len(matrix) == 0 || len(matrix[0].Values) == 0 {
		return nil, unavailable(fmt.Errorf("empty result for metric %s", q.MetricName), "metricsource.prometheus", q)
	}
	if len(matrix) > 1 {
		p.log.Warn("prometheus query returned multiple series, using the first",
			logger.String("metric", q.MetricName),
			logger.Int("series", len(matrix)))
	}

	samples := matrix[0].Values
	data := &MetricData{
		CurrentValue: float64(samples[len(samples)-1].Value),
		Historical:   make([]Point, len(samples)),
	}
	for i, s := range samples {
		data.Historical[i] = Point{Timestamp: s.Timestamp.Time().UTC(), Value: float64(s.Value)}
	}
	return data, nil
}
