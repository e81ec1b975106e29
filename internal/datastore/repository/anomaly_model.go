package repository

import (
	"context"
	"fmt"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnomalyModelRepository persists anomaly model metadata.
type AnomalyModelRepository interface {
	SaveModel(ctx context.Context, rec *entities.AnomalyModelRecord) error
	GetModel(ctx context.Context, key string) (*entities.AnomalyModelRecord, error)
	ListModels(ctx context.Context, tenantID string) ([]entities.AnomalyModelRecord, error)
}

type anomalyModelRepository struct {
	db *gorm.DB
}

// NewAnomalyModelRepository creates a GORM backed AnomalyModelRepository.
func NewAnomalyModelRepository(db *gorm.DB) AnomalyModelRepository {
	return &anomalyModelRepository{db: db}
}

// SaveModel upserts the record by key.
func (r *anomalyModelRepository) SaveModel(ctx context.Context, rec *entities.AnomalyModelRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_key"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save anomaly model %s: %w", rec.Key, err)
	}
	return nil
}

func (r *anomalyModelRepository) GetModel(ctx context.Context, key string) (*entities.AnomalyModelRecord, error) {
	var rec entities.AnomalyModelRecord
	if err := r.db.WithContext(ctx).Where("model_key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnomalyModelNotFound
		}
		return nil, fmt.Errorf("failed to get anomaly model %s: %w", key, err)
	}
	return &rec, nil
}

func (r *anomalyModelRepository) ListModels(ctx context.Context, tenantID string) ([]entities.AnomalyModelRecord, error) {
	var recs []entities.AnomalyModelRecord
	query := r.db.WithContext(ctx)
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if err := query.Order("metric_name ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list anomaly models: %w", err)
	}
	return recs, nil
}
