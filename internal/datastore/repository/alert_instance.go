package repository

import (
	"context"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
)

// AlertInstanceRepository stores alert instances. Instances are written once
// by the engine; only their status changes afterwards.
type AlertInstanceRepository interface {
	SaveInstance(ctx context.Context, instance *entities.AlertInstance) error
	GetInstance(ctx context.Context, id string) (*entities.AlertInstance, error)
	ListInstances(ctx context.Context, filter AlertInstanceFilter) ([]entities.AlertInstance, int64, error)
	// UpdateStatus applies an external status transition. Only ACTIVE
	// instances can move, and only to a terminal status.
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
	// DeleteInstancesBefore removes non-ACTIVE instances triggered before the cutoff.
	DeleteInstancesBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertInstanceFilter controls instance listing queries.
type AlertInstanceFilter struct {
	TenantID string
	AlertID  uint
	Status   string
	Since    time.Time
	Limit    int
	Offset   int
}

// Alert instance statuses.
const (
	InstanceStatusActive        = "ACTIVE"
	InstanceStatusAcknowledged  = "ACKNOWLEDGED"
	InstanceStatusResolved      = "RESOLVED"
	InstanceStatusFalsePositive = "FALSE_POSITIVE"
	InstanceStatusExpired       = "EXPIRED"
)

// IsTerminalInstanceStatus reports whether status is a valid transition
// target from ACTIVE.
func IsTerminalInstanceStatus(status string) bool {
	switch status {
	case InstanceStatusAcknowledged, InstanceStatusResolved, InstanceStatusFalsePositive, InstanceStatusExpired:
		return true
	default:
		return false
	}
}
