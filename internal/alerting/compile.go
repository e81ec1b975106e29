package alerting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
)

const (
	// DefaultMLConfidenceThreshold is stored on new configurations. It is
	// recorded with the model but does not gate alerts.
	DefaultMLConfidenceThreshold = 0.8
	// DefaultMLTrainingWindowDays is the history length used for training.
	DefaultMLTrainingWindowDays = 30
)

// CompiledConfig is an AlertConfig with its textual fields parsed once per
// load. Problems lists non-fatal issues where a default was substituted;
// Err is set when the condition can never pass.
type CompiledConfig struct {
	Config         *entities.AlertConfig
	Operator       string
	Cooldown       time.Duration
	Lookback       time.Duration
	FrequencyStep  time.Duration
	TrainingWindow time.Duration
	Severity       string
	Problems       []string
	Err            error
}

// Compile parses cfg leniently: durations and frequencies fall back to
// defaults and the reason is recorded in Problems. Condition level defects
// are reported through Err.
func Compile(cfg *entities.AlertConfig) *CompiledConfig {
	cc := &CompiledConfig{Config: cfg}

	var ok bool
	if cc.Cooldown, ok = ParseCooldown(cfg.CooldownPeriod); !ok && cfg.CooldownPeriod != "" {
		cc.Problems = append(cc.Problems, fmt.Sprintf("invalid cooldown %q, using %s", cfg.CooldownPeriod, DefaultCooldown))
	}
	if cc.Lookback, ok = ParseLookback(cfg.LookbackPeriod); !ok && cfg.LookbackPeriod != "" {
		cc.Problems = append(cc.Problems, fmt.Sprintf("invalid lookback %q, using %s", cfg.LookbackPeriod, DefaultLookback))
	}
	if cc.FrequencyStep, ok = FrequencyStep(cfg.Frequency); !ok {
		cc.Problems = append(cc.Problems, fmt.Sprintf("unknown frequency %q, checking hourly", cfg.Frequency))
	}

	days := cfg.MLTrainingWindowDays
	if days <= 0 {
		days = DefaultMLTrainingWindowDays
	}
	cc.TrainingWindow = time.Duration(days) * 24 * time.Hour

	cc.Severity = normalizeSeverity(cfg.Severity)
	cc.Operator = NormalizeOperator(cfg.Operator)
	cc.Err = conditionError(cfg, cc.Operator)
	return cc
}

// HistoryWindow is how far back metric history must be fetched: the
// lookback period, widened to the training window when ML is enabled.
func (cc *CompiledConfig) HistoryWindow() time.Duration {
	if cc.Config.MLEnabled && cc.TrainingWindow > cc.Lookback {
		return cc.TrainingWindow
	}
	return cc.Lookback
}

func conditionError(cfg *entities.AlertConfig, op string) error {
	build := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("alerting").
			Category(errors.CategoryConfig).
			Context("alert_id", cfg.ID).
			Context("operator", cfg.Operator).
			Build()
	}

	switch {
	case op == "":
		return build("unknown condition operator %q", cfg.Operator)
	case cfg.Threshold.Kind == "":
		return build("missing threshold")
	case cfg.Threshold.IsNumeric() && !isFinite(cfg.Threshold.Number):
		return build("threshold must be a finite number, got %v", cfg.Threshold.Number)
	case cfg.SecondaryThreshold != nil && !isFinite(*cfg.SecondaryThreshold):
		return build("secondary threshold must be a finite number, got %v", *cfg.SecondaryThreshold)
	case cfg.Threshold.Kind == entities.ThresholdText && isOrderingOperator(op):
		return build("operator %s requires a numeric threshold, got %q", op, cfg.Threshold.Text)
	case (op == OperatorBetween || op == OperatorOutside) && cfg.SecondaryThreshold == nil:
		return build("operator %s requires a secondary threshold", op)
	case (op == OperatorBetween || op == OperatorOutside) && cfg.Threshold.Number > *cfg.SecondaryThreshold:
		return build("operator %s requires threshold <= secondary threshold", op)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// ValidateConfig checks a configuration strictly, as done before it is
// stored. Unlike Compile it rejects unparsable periods and unknown
// frequencies.
func ValidateConfig(cfg *entities.AlertConfig) error {
	if strings.TrimSpace(cfg.TenantID) == "" {
		return validationError("tenant id is required")
	}
	if strings.TrimSpace(cfg.MetricName) == "" {
		return validationError("metric name is required")
	}
	cc := Compile(cfg)
	if cc.Err != nil {
		return cc.Err
	}
	if len(cc.Problems) > 0 {
		return validationError("%s", strings.Join(cc.Problems, "; "))
	}
	if cfg.MLConfidenceThreshold < 0 || cfg.MLConfidenceThreshold > 1 {
		return validationError("ml confidence threshold must be within [0, 1]")
	}
	if cfg.MLTrainingWindowDays < 0 {
		return validationError("ml training window must not be negative")
	}
	return nil
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("alerting").
		Category(errors.CategoryValidation).
		Build()
}
