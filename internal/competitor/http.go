package competitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/patrickmn/go-cache"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	defaultCacheTTL    = 15 * time.Minute
	maxResponseBytes   = 1 << 20
)

// HTTPProvider fetches signals from a JSON endpoint and caches them per
// tenant, campaign and metric.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
	cache    *cache.Cache
}

// NewHTTPProvider creates a provider for endpoint. A nil client uses a
// default client bounded by timeout.
func NewHTTPProvider(endpoint string, timeout, cacheTTL time.Duration, client *http.Client) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProvider{
		endpoint: endpoint,
		client:   client,
		cache:    cache.New(cacheTTL, 2*cacheTTL),
	}
}

type httpResponse struct {
	CompetitorMetrics   map[string]float64 `json:"competitor_metrics"`
	MarketShareEstimate float64            `json:"market_share_estimate"`
	ThreatLevel         string             `json:"threat_level"`
}

func (p *HTTPProvider) Signal(ctx context.Context, req Request) (*Signal, error) {
	key := req.TenantID + "|" + req.CampaignID + "|" + req.MetricName
	if v, ok := p.cache.Get(key); ok {
		return v.(*Signal), nil
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid competitor endpoint: %w", err)
	}
	params := u.Query()
	params.Set("tenant_id", req.TenantID)
	params.Set("metric", req.MetricName)
	if req.CampaignID != "" {
		params.Set("campaign_id", req.CampaignID)
	}
	u.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(fmt.Errorf("competitor request failed: %w", err)).
			Component("competitor").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		p.cache.SetDefault(key, (*Signal)(nil))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("competitor endpoint returned %s", resp.Status).
			Component("competitor").
			Category(errors.CategoryNetwork).
			Context("status", resp.StatusCode).
			Build()
	}

	var body httpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode competitor response: %w", err)
	}

	sig := &Signal{
		CompetitorMetrics:   body.CompetitorMetrics,
		MarketShareEstimate: body.MarketShareEstimate,
		ThreatLevel:         body.ThreatLevel,
	}
	if sig.ThreatLevel == "" {
		sig.ThreatLevel = ThreatLow
		if benchmark, ok := body.CompetitorMetrics[req.MetricName]; ok {
			sig.ThreatLevel = ThreatFor(req.CurrentValue, benchmark)
		}
	}
	p.cache.SetDefault(key, sig)
	return sig, nil
}
