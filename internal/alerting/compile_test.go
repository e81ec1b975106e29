package alerting

import (
	"math"
	"testing"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *entities.AlertConfig {
	return &entities.AlertConfig{
		TenantID:       "tenant-a",
		MetricName:     "cpc",
		Operator:       ">",
		Threshold:      entities.NumericThreshold(100),
		Frequency:      FrequencyEveryHour,
		LookbackPeriod: "24h",
		CooldownPeriod: "1h",
		Severity:       "HIGH",
	}
}

func TestCompile_ParsesFields(t *testing.T) {
	t.Parallel()

	cc := Compile(validConfig())
	require.NoError(t, cc.Err)
	assert.Empty(t, cc.Problems)
	assert.Equal(t, OperatorGreaterThan, cc.Operator)
	assert.Equal(t, time.Hour, cc.Cooldown)
	assert.Equal(t, 24*time.Hour, cc.Lookback)
	assert.Equal(t, time.Hour, cc.FrequencyStep)
	assert.Equal(t, SeverityHigh, cc.Severity)
	assert.Equal(t, 30*24*time.Hour, cc.TrainingWindow)
}

func TestCompile_FallsBackOnBadPeriods(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CooldownPeriod = "soon"
	cfg.LookbackPeriod = "a while"
	cfg.Frequency = "SOMETIMES"

	cc := Compile(cfg)
	require.NoError(t, cc.Err)
	assert.Len(t, cc.Problems, 3)
	assert.Equal(t, DefaultCooldown, cc.Cooldown)
	assert.Equal(t, DefaultLookback, cc.Lookback)
	assert.Equal(t, time.Hour, cc.FrequencyStep)
}

func TestCompile_ConditionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*entities.AlertConfig)
	}{
		{"unknown operator", func(c *entities.AlertConfig) { c.Operator = "LIKE" }},
		{"missing threshold", func(c *entities.AlertConfig) { c.Threshold = entities.Threshold{} }},
		{"text with ordering", func(c *entities.AlertConfig) { c.Threshold = entities.TextThreshold("high") }},
		{"between without upper", func(c *entities.AlertConfig) { c.Operator = OperatorBetween }},
		{"inverted range", func(c *entities.AlertConfig) {
			c.Operator = OperatorBetween
			c.SecondaryThreshold = ptr(50.0)
		}},
		{"NaN threshold", func(c *entities.AlertConfig) {
			c.Operator = "!="
			c.Threshold = entities.TextThreshold("NaN")
		}},
		{"infinite threshold", func(c *entities.AlertConfig) { c.Threshold = entities.TextThreshold("Inf") }},
		{"infinite upper bound", func(c *entities.AlertConfig) {
			c.Operator = OperatorBetween
			c.SecondaryThreshold = ptr(math.Inf(1))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			cc := Compile(cfg)
			require.Error(t, cc.Err)
			assert.True(t, errors.IsCategory(cc.Err, errors.CategoryConfig))
		})
	}
}

func TestCompile_HistoryWindow(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, 24*time.Hour, Compile(cfg).HistoryWindow())

	cfg.MLEnabled = true
	cfg.MLTrainingWindowDays = 7
	assert.Equal(t, 7*24*time.Hour, Compile(cfg).HistoryWindow())

	cfg.LookbackPeriod = "10d"
	assert.Equal(t, 10*24*time.Hour, Compile(cfg).HistoryWindow())
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateConfig(validConfig()))

	cfg := validConfig()
	cfg.TenantID = ""
	assert.True(t, errors.IsCategory(ValidateConfig(cfg), errors.CategoryValidation))

	cfg = validConfig()
	cfg.CooldownPeriod = "forever"
	assert.True(t, errors.IsCategory(ValidateConfig(cfg), errors.CategoryValidation))

	cfg = validConfig()
	cfg.MLConfidenceThreshold = 1.5
	assert.Error(t, ValidateConfig(cfg))

	cfg = validConfig()
	cfg.Operator = "??"
	assert.True(t, errors.IsCategory(ValidateConfig(cfg), errors.CategoryConfig))
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := &entities.AlertConfig{TenantID: "t", MetricName: "ctr", Operator: "<", Threshold: entities.NumericThreshold(2)}
	ApplyDefaults(cfg, now)

	assert.Equal(t, OperatorLessThan, cfg.Operator)
	assert.Equal(t, TriggerTypeThreshold, cfg.TriggerType)
	assert.Equal(t, FrequencyEveryHour, cfg.Frequency)
	assert.Equal(t, "24h", cfg.LookbackPeriod)
	assert.Equal(t, "1h", cfg.CooldownPeriod)
	assert.Equal(t, SeverityMedium, cfg.Severity)
	assert.Equal(t, ConfigStatusActive, cfg.Status)
	assert.InDelta(t, DefaultMLConfidenceThreshold, cfg.MLConfidenceThreshold, 1e-9)
	require.NotNil(t, cfg.NextCheck)
	assert.Equal(t, now.Add(time.Hour), *cfg.NextCheck)
}
