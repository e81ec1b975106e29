package entities

import "time"

// AnomalyModelRecord is the persisted view of an in-memory anomaly model.
// The trained artifact itself lives only in process memory.
type AnomalyModelRecord struct {
	Key                 string     `gorm:"column:model_key;primaryKey;size:255" json:"key"`
	TenantID            string     `gorm:"size:64;not null;index" json:"tenant_id"`
	MetricName          string     `gorm:"size:100;not null" json:"metric_name"`
	Trained             bool       `gorm:"not null" json:"trained"`
	TrainingPoints      int        `json:"training_points"`
	TrainingWindowDays  int        `json:"training_window_days"`
	ConfidenceThreshold float64    `json:"confidence_threshold"`
	EnsembleSize        int        `json:"ensemble_size"`
	Contamination       float64    `json:"contamination"`
	LastTrained         *time.Time `json:"last_trained,omitempty"`
	LastError           string     `gorm:"size:1000;default:''" json:"last_error,omitempty"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AnomalyModelRecord) TableName() string {
	return "anomaly_models"
}
