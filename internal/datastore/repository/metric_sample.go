package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"gorm.io/gorm"
)

// MetricSampleRepository stores raw metric observations.
type MetricSampleRepository interface {
	RecordSamples(ctx context.Context, samples []entities.MetricSample) error
	// ListSamples returns samples in ascending timestamp order.
	ListSamples(ctx context.Context, query MetricSampleQuery) ([]entities.MetricSample, error)
	// LatestSample returns ErrNoSamples when the series is empty.
	LatestSample(ctx context.Context, query MetricSampleQuery) (*entities.MetricSample, error)
}

// MetricSampleQuery selects one tenant metric series. An empty CampaignID
// selects the tenant level series, samples recorded without a campaign.
type MetricSampleQuery struct {
	TenantID   string
	CampaignID string
	MetricName string
	From       time.Time
	To         time.Time
}

// ErrNoSamples is returned by LatestSample for an empty series.
var ErrNoSamples = errors.NewStd("no metric samples")

type metricSampleRepository struct {
	db *gorm.DB
}

// NewMetricSampleRepository creates a GORM backed MetricSampleRepository.
func NewMetricSampleRepository(db *gorm.DB) MetricSampleRepository {
	return &metricSampleRepository{db: db}
}

const sampleBatchSize = 500

func (r *metricSampleRepository) RecordSamples(ctx context.Context, samples []entities.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(samples, sampleBatchSize).Error; err != nil {
		return fmt.Errorf("failed to record metric samples: %w", err)
	}
	return nil
}

func (r *metricSampleRepository) scoped(ctx context.Context, q MetricSampleQuery) *gorm.DB {
	db := r.db.WithContext(ctx).
		Where("tenant_id = ? AND metric_name = ?", q.TenantID, q.MetricName)
	if q.CampaignID != "" {
		db = db.Where("campaign_id = ?", q.CampaignID)
	} else {
		db = db.Where("campaign_id IS NULL")
	}
	if !q.From.IsZero() {
		db = db.Where("observed_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		db = db.Where("observed_at <= ?", q.To)
	}
	return db
}

func (r *metricSampleRepository) ListSamples(ctx context.Context, q MetricSampleQuery) ([]entities.MetricSample, error) {
	var samples []entities.MetricSample
	if err := r.scoped(ctx, q).Order("observed_at ASC").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to list metric samples for %s/%s: %w", q.TenantID, q.MetricName, err)
	}
	return samples, nil
}

func (r *metricSampleRepository) LatestSample(ctx context.Context, q MetricSampleQuery) (*entities.MetricSample, error) {
	var sample entities.MetricSample
	if err := r.scoped(ctx, q).Order("observed_at DESC").First(&sample).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSamples
		}
		return nil, fmt.Errorf("failed to get latest metric sample for %s/%s: %w", q.TenantID, q.MetricName, err)
	}
	return &sample, nil
}
