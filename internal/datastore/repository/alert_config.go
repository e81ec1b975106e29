package repository

import (
	"context"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
)

// AlertConfigRepository stores tenant alert configurations.
type AlertConfigRepository interface {
	// CRUD
	ListConfigs(ctx context.Context, filter AlertConfigFilter) ([]entities.AlertConfig, error)
	GetConfig(ctx context.Context, id uint) (*entities.AlertConfig, error)
	CreateConfig(ctx context.Context, cfg *entities.AlertConfig) error
	UpdateConfig(ctx context.Context, cfg *entities.AlertConfig) error
	DeleteConfig(ctx context.Context, id uint) error
	ToggleConfig(ctx context.Context, id uint, active bool) error

	// Scheduler access
	ListActiveConfigs(ctx context.Context, tenantID string) ([]entities.AlertConfig, error)
	ListActiveTenants(ctx context.Context) ([]string, error)
	UpdateSchedule(ctx context.Context, id uint, update ScheduleUpdate) error
}

// AlertConfigFilter controls configuration listing queries.
type AlertConfigFilter struct {
	TenantID   string
	CampaignID string
	MetricName string
	Active     *bool
}

// ScheduleUpdate carries the scheduling fields the engine writes after a
// due check. When Triggered is set the trigger count is incremented and
// LastTriggered is written as well.
type ScheduleUpdate struct {
	LastChecked   time.Time
	NextCheck     time.Time
	Triggered     bool
	LastTriggered time.Time
}
