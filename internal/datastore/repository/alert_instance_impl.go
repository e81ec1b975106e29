package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"gorm.io/gorm"
)

type alertInstanceRepository struct {
	db *gorm.DB
}

// NewAlertInstanceRepository creates a GORM backed AlertInstanceRepository.
func NewAlertInstanceRepository(db *gorm.DB) AlertInstanceRepository {
	return &alertInstanceRepository{db: db}
}

func (r *alertInstanceRepository) SaveInstance(ctx context.Context, instance *entities.AlertInstance) error {
	if instance.ID == "" {
		return fmt.Errorf("failed to save alert instance: missing instance ID")
	}
	if err := r.db.WithContext(ctx).Omit("Alert").Create(instance).Error; err != nil {
		return fmt.Errorf("failed to save alert instance: %w", err)
	}
	return nil
}

func (r *alertInstanceRepository) GetInstance(ctx context.Context, id string) (*entities.AlertInstance, error) {
	var instance entities.AlertInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get alert instance %s: %w", id, err)
	}
	return &instance, nil
}

func (r *alertInstanceRepository) ListInstances(ctx context.Context, filter AlertInstanceFilter) ([]entities.AlertInstance, int64, error) {
	var items []entities.AlertInstance
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.AlertID > 0 {
			q = q.Where("alert_id = ?", filter.AlertID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if !filter.Since.IsZero() {
			q = q.Where("triggered_at >= ?", filter.Since)
		}
		return q
	}

	if err := apply(r.db.WithContext(ctx).Model(&entities.AlertInstance{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alert instances: %w", err)
	}

	query := apply(r.db.WithContext(ctx)).Order("triggered_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alert instances: %w", err)
	}
	return items, total, nil
}

func (r *alertInstanceRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	if !IsTerminalInstanceStatus(status) {
		return fmt.Errorf("%w: target status %q", ErrInvalidStatusTransition, status)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.AlertInstance
		if err := tx.Select("id", "status").Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlertInstanceNotFound
			}
			return fmt.Errorf("failed to load alert instance %s: %w", id, err)
		}
		if current.Status != InstanceStatusActive {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, status)
		}
		err := tx.Model(&entities.AlertInstance{}).
			Where("id = ? AND status = ?", id, InstanceStatusActive).
			UpdateColumns(map[string]any{"status": status, "status_changed_at": at}).Error
		if err != nil {
			return fmt.Errorf("failed to update alert instance %s status: %w", id, err)
		}
		return nil
	})
}

func (r *alertInstanceRepository) DeleteInstancesBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("triggered_at < ? AND status <> ?", before, InstanceStatusActive).
		Delete(&entities.AlertInstance{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete alert instances before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
