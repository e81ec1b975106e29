package entities

import "time"

// AlertConfig is a tenant-owned rule evaluated periodically against one
// metric. The engine only writes the scheduling fields (LastChecked,
// NextCheck, LastTriggered, TriggerCount).
type AlertConfig struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	TenantID    string  `gorm:"size:64;not null;index:idx_alert_configs_tenant_active,priority:1" json:"tenant_id"`
	CampaignID  *string `gorm:"size:64;index" json:"campaign_id,omitempty"`
	Name        string  `gorm:"size:255;default:''" json:"name"`
	MetricName  string  `gorm:"size:100;not null" json:"metric_name"`
	TriggerType string  `gorm:"size:20;not null;default:'threshold'" json:"trigger_type"`

	Operator           string    `gorm:"size:20;not null" json:"condition_operator"`
	Threshold          Threshold `gorm:"type:varchar(255);not null" json:"threshold"`
	SecondaryThreshold *float64  `json:"secondary_threshold,omitempty"`

	Frequency      string `gorm:"size:20;not null;default:'EVERY_HOUR'" json:"frequency"`
	LookbackPeriod string `gorm:"size:20;default:'24h'" json:"lookback_period"`
	CooldownPeriod string `gorm:"size:20;default:'1h'" json:"cooldown_period"`

	MLEnabled             bool    `gorm:"not null" json:"ml_enabled"`
	TrendEnabled          bool    `gorm:"not null" json:"trend_enabled"`
	CompetitorEnabled     bool    `gorm:"not null" json:"competitor_enabled"`
	SeasonalEnabled       bool    `gorm:"not null" json:"seasonal_enabled"`
	MLConfidenceThreshold float64 `json:"ml_confidence_threshold"`
	MLTrainingWindowDays  int     `json:"ml_training_window_days"`

	Severity   string     `gorm:"size:20;default:'medium'" json:"severity"`
	Recipients StringList `gorm:"type:text" json:"recipients"`
	Channels   StringList `gorm:"type:text" json:"channels"`

	IsActive bool   `gorm:"not null;index:idx_alert_configs_tenant_active,priority:2" json:"is_active"`
	Status   string `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`

	TriggerCount  int        `gorm:"not null;default:0" json:"trigger_count"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	LastChecked   *time.Time `json:"last_checked,omitempty"`
	NextCheck     *time.Time `gorm:"index" json:"next_check,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertConfig) TableName() string {
	return "alert_configs"
}
