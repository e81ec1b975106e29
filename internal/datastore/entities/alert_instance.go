package entities

import "time"

// AlertInstance records one passing evaluation of an AlertConfig. Rows are
// append-only; only Status and StatusChangedAt change afterwards, and only
// through external transitions.
type AlertInstance struct {
	ID                   string     `gorm:"primaryKey;size:36" json:"id"`
	AlertID              uint       `gorm:"not null;index:idx_alert_instances_alert_triggered,priority:1" json:"alert_id"`
	TenantID             string     `gorm:"size:64;not null;index" json:"tenant_id"`
	CampaignID           *string    `gorm:"size:64" json:"campaign_id,omitempty"`
	TriggeredAt          time.Time  `gorm:"not null;index:idx_alert_instances_alert_triggered,priority:2" json:"triggered_at"`
	MetricName           string     `gorm:"size:100;not null" json:"metric_name"`
	MetricValue          float64    `json:"metric_value"`
	ThresholdValue       Threshold  `gorm:"type:varchar(255)" json:"threshold_value"`
	DeviationPercentage  float64    `json:"deviation_percentage"`
	Context              JSONMap    `gorm:"type:text" json:"context"`
	MLConfidence         *float64   `json:"ml_confidence,omitempty"`
	Status               string     `gorm:"size:20;not null;default:'ACTIVE';index" json:"status"`
	StatusChangedAt      *time.Time `json:"status_changed_at,omitempty"`
	NotificationChannels StringList `gorm:"type:text" json:"notification_channels"`
	NotificationIDs      StringList `gorm:"type:text" json:"notification_ids"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Alert AlertConfig `gorm:"foreignKey:AlertID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (AlertInstance) TableName() string {
	return "alert_instances"
}
