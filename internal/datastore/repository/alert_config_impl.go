package repository

import (
	"context"
	"fmt"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"gorm.io/gorm"
)

// StatusActive is the AlertConfig.Status value eligible for scheduling.
const StatusActive = "ACTIVE"

type alertConfigRepository struct {
	db *gorm.DB
}

// NewAlertConfigRepository creates a GORM backed AlertConfigRepository.
func NewAlertConfigRepository(db *gorm.DB) AlertConfigRepository {
	return &alertConfigRepository{db: db}
}

func (r *alertConfigRepository) ListConfigs(ctx context.Context, filter AlertConfigFilter) ([]entities.AlertConfig, error) {
	var configs []entities.AlertConfig
	query := r.db.WithContext(ctx)

	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.CampaignID != "" {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.MetricName != "" {
		query = query.Where("metric_name = ?", filter.MetricName)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	if err := query.Order("id ASC").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert configs: %w", err)
	}
	return configs, nil
}

// GetConfig returns ErrAlertConfigNotFound if the configuration does not exist.
func (r *alertConfigRepository) GetConfig(ctx context.Context, id uint) (*entities.AlertConfig, error) {
	var cfg entities.AlertConfig
	if err := r.db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("failed to get alert config %d: %w", id, err)
	}
	return &cfg, nil
}

func (r *alertConfigRepository) CreateConfig(ctx context.Context, cfg *entities.AlertConfig) error {
	if err := r.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create alert config: %w", err)
	}
	return nil
}

// UpdateConfig saves the configuration body, including zero values. The
// trigger history columns are owned by the engine and left untouched.
func (r *alertConfigRepository) UpdateConfig(ctx context.Context, cfg *entities.AlertConfig) error {
	if cfg.ID == 0 {
		return fmt.Errorf("failed to update alert config: missing config ID")
	}
	if cfg.Status == "" {
		cfg.Status = StatusActive
	}
	result := r.db.WithContext(ctx).Model(&entities.AlertConfig{}).
		Where("id = ?", cfg.ID).
		Select("*").
		Omit("id", "created_at", "trigger_count", "last_triggered", "last_checked").
		Updates(cfg)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert config %d: %w", cfg.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertConfigNotFound
	}
	return nil
}

// DeleteConfig deletes a configuration and, via cascade, its instances.
func (r *alertConfigRepository) DeleteConfig(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.AlertConfig{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert config %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertConfigNotFound
	}
	return nil
}

func (r *alertConfigRepository) ToggleConfig(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertConfig{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert config %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertConfigNotFound
	}
	return nil
}

// ListActiveConfigs returns configurations with is_active set and status ACTIVE.
func (r *alertConfigRepository) ListActiveConfigs(ctx context.Context, tenantID string) ([]entities.AlertConfig, error) {
	var configs []entities.AlertConfig
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ? AND status = ?", tenantID, true, StatusActive).
		Order("id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active alert configs for tenant %s: %w", tenantID, err)
	}
	return configs, nil
}

func (r *alertConfigRepository) ListActiveTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).Model(&entities.AlertConfig{}).
		Where("is_active = ? AND status = ?", true, StatusActive).
		Distinct().
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return tenants, nil
}

// UpdateSchedule writes only the scheduling columns so concurrent edits of
// the configuration body are not overwritten.
func (r *alertConfigRepository) UpdateSchedule(ctx context.Context, id uint, update ScheduleUpdate) error {
	values := map[string]any{
		"last_checked": update.LastChecked,
		"next_check":   update.NextCheck,
	}
	if update.Triggered {
		values["last_triggered"] = update.LastTriggered
		values["trigger_count"] = gorm.Expr("trigger_count + ?", 1)
	}
	result := r.db.WithContext(ctx).Model(&entities.AlertConfig{}).Where("id = ?", id).UpdateColumns(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update schedule of alert config %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertConfigNotFound
	}
	return nil
}
