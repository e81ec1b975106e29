package alerting

import (
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
)

// ApplyDefaults fills unset fields of a new configuration and schedules its
// first check. Operators are stored in canonical form.
func ApplyDefaults(cfg *entities.AlertConfig, now time.Time) {
	if cfg.TriggerType == "" {
		cfg.TriggerType = TriggerTypeThreshold
	}
	if cfg.Frequency == "" {
		cfg.Frequency = FrequencyEveryHour
	}
	if cfg.LookbackPeriod == "" {
		cfg.LookbackPeriod = "24h"
	}
	if cfg.CooldownPeriod == "" {
		cfg.CooldownPeriod = "1h"
	}
	if cfg.MLConfidenceThreshold == 0 {
		cfg.MLConfidenceThreshold = DefaultMLConfidenceThreshold
	}
	if cfg.MLTrainingWindowDays == 0 {
		cfg.MLTrainingWindowDays = DefaultMLTrainingWindowDays
	}
	if cfg.Status == "" {
		cfg.Status = ConfigStatusActive
	}
	cfg.Severity = normalizeSeverity(cfg.Severity)
	if op := NormalizeOperator(cfg.Operator); op != "" {
		cfg.Operator = op
	}
	if cfg.NextCheck == nil {
		next := NextCheck(cfg.Frequency, now)
		cfg.NextCheck = &next
	}
}
