package entities

import "time"

// MetricSample is one observation of a tenant metric.
type MetricSample struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   string    `gorm:"size:64;not null;index:idx_metric_samples_lookup,priority:1" json:"tenant_id"`
	MetricName string    `gorm:"size:100;not null;index:idx_metric_samples_lookup,priority:2" json:"metric_name"`
	CampaignID *string   `gorm:"size:64;index" json:"campaign_id,omitempty"`
	Timestamp  time.Time `gorm:"column:observed_at;not null;index:idx_metric_samples_lookup,priority:3" json:"timestamp"`
	Value      float64   `gorm:"not null" json:"value"`
}

// TableName returns the table name for GORM.
func (MetricSample) TableName() string {
	return "metric_samples"
}

// AllModels lists every entity managed by AutoMigrate.
func AllModels() []any {
	return []any{
		&AlertConfig{},
		&AlertInstance{},
		&AnomalyModelRecord{},
		&MetricSample{},
	}
}
