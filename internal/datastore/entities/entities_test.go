package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextThreshold_PromotesNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantKind ThresholdKind
		wantNum  float64
	}{
		{"2.0", ThresholdNumeric, 2.0},
		{" 100 ", ThresholdNumeric, 100},
		{"-3.5", ThresholdNumeric, -3.5},
		{"high", ThresholdText, 0},
		{"", ThresholdText, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			th := TextThreshold(tt.in)
			assert.Equal(t, tt.wantKind, th.Kind)
			if tt.wantKind == ThresholdNumeric {
				v, ok := th.Float()
				require.True(t, ok)
				assert.InDelta(t, tt.wantNum, v, 1e-12)
			}
		})
	}
}

func TestThreshold_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NumericThreshold(2.5))
	require.NoError(t, err)
	assert.Equal(t, "2.5", string(b))

	b, err = json.Marshal(TextThreshold("paused"))
	require.NoError(t, err)
	assert.Equal(t, `"paused"`, string(b))

	var th Threshold
	require.NoError(t, json.Unmarshal([]byte(`"15"`), &th))
	assert.True(t, th.IsNumeric())

	require.NoError(t, json.Unmarshal([]byte(`"paused"`), &th))
	assert.Equal(t, ThresholdText, th.Kind)
	assert.Equal(t, "paused", th.String())

	assert.Error(t, json.Unmarshal([]byte(`true`), &th))
}

func TestThreshold_ScanValue(t *testing.T) {
	t.Parallel()

	v, err := NumericThreshold(0.25).Value()
	require.NoError(t, err)
	assert.Equal(t, "0.25", v)

	var th Threshold
	require.NoError(t, th.Scan([]byte("0.25")))
	assert.Equal(t, NumericThreshold(0.25), th)

	require.NoError(t, th.Scan(int64(7)))
	assert.Equal(t, NumericThreshold(7), th)

	require.NoError(t, th.Scan(nil))
	assert.Equal(t, Threshold{}, th)

	assert.Error(t, th.Scan(true))
}

func TestStringListAndJSONMap_ScanValue(t *testing.T) {
	t.Parallel()

	v, err := StringList{"email", "slack"}.Value()
	require.NoError(t, err)

	var l StringList
	require.NoError(t, l.Scan(v))
	assert.Equal(t, StringList{"email", "slack"}, l)

	v, err = StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	mv, err := JSONMap{"trend": map[string]any{"direction": "up"}}.Value()
	require.NoError(t, err)

	var m JSONMap
	require.NoError(t, m.Scan(mv))
	assert.Equal(t, "up", m["trend"].(map[string]any)["direction"])

	assert.Error(t, m.Scan("{not json"))
}

// TestAlertConfigJSONKeys pins the API field names.
func TestAlertConfigJSONKeys(t *testing.T) {
	t.Parallel()

	second := 20.0
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := AlertConfig{
		ID:                 3,
		TenantID:           "t1",
		MetricName:         "ctr",
		Operator:           "BETWEEN",
		Threshold:          NumericThreshold(10),
		SecondaryThreshold: &second,
		Frequency:          "DAILY",
		NextCheck:          &now,
		IsActive:           true,
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{
		"id", "tenant_id", "metric_name", "condition_operator", "threshold",
		"secondary_threshold", "frequency", "lookback_period", "cooldown_period",
		"ml_enabled", "trend_enabled", "competitor_enabled", "is_active",
		"status", "trigger_count", "next_check",
	} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "campaign_id")
	assert.InDelta(t, 10, m["threshold"], 0)
}
