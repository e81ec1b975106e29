package metricsource

import (
	"context"
	"fmt"

	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/errors"
)

// SQLProvider reads metric samples from the database.
type SQLProvider struct {
	samples repository.MetricSampleRepository
}

// NewSQLProvider creates a provider over the metric_samples table.
func NewSQLProvider(samples repository.MetricSampleRepository) *SQLProvider {
	return &SQLProvider{samples: samples}
}

func (p *SQLProvider) Fetch(ctx context.Context, q Query) (*MetricData, error) {
	sq := repository.MetricSampleQuery{
		TenantID:   q.TenantID,
		CampaignID: q.CampaignID,
		MetricName: q.MetricName,
		To:         q.At,
	}

	latest, err := p.samples.LatestSample(ctx, sq)
	if err != nil {
		if errors.Is(err, repository.ErrNoSamples) {
			return nil, unavailable(fmt.Errorf("no samples for metric %s", q.MetricName), "metricsource.sql", q)
		}
		return nil, unavailable(err, "metricsource.sql", q)
	}

	sq.From = q.start()
	rows, err := p.samples.ListSamples(ctx, sq)
	if err != nil {
		return nil, unavailable(err, "metricsource.sql", q)
	}

	data := &MetricData{
		CurrentValue: latest.Value,
		Historical:   make([]Point, len(rows)),
	}
	for i, row := range rows {
		data.Historical[i] = Point{Timestamp: row.Timestamp, Value: row.Value}
	}
	return data, nil
}
