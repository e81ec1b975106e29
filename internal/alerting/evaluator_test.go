package alerting

import (
	"testing"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"GREATER_THAN", OperatorGreaterThan},
		{"greater_than", OperatorGreaterThan},
		{">", OperatorGreaterThan},
		{" <= ", OperatorLessOrEqual},
		{"=", OperatorEquals},
		{"==", OperatorEquals},
		{"!=", OperatorNotEquals},
		{"between", OperatorBetween},
		{"Outside", OperatorOutside},
		{"contains", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeOperator(tt.in), tt.in)
	}
}

func TestEvaluateCondition_Numeric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float64
		op    string
		thr   float64
		want  bool
	}{
		{"gt true", 120, OperatorGreaterThan, 100, true},
		{"gt equal", 100, OperatorGreaterThan, 100, false},
		{"lt true", 1.5, OperatorLessThan, 2.0, true},
		{"lt false", 2.5, "<", 2.0, false},
		{"eq", 3, OperatorEquals, 3, true},
		{"ne", 3, OperatorNotEquals, 3, false},
		{"ge equal", 90, ">=", 90, true},
		{"le below", 89, OperatorLessOrEqual, 90, true},
		{"le above", 91, OperatorLessOrEqual, 90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EvaluateCondition(tt.value, tt.op, entities.NumericThreshold(tt.thr), nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_BetweenInclusive(t *testing.T) {
	t.Parallel()

	thr := entities.NumericThreshold(10)
	upper := ptr(20.0)
	cases := map[float64]bool{
		10:    true,
		15:    true,
		20:    true,
		9.99:  false,
		20.01: false,
	}
	for v, want := range cases {
		assert.Equal(t, want, EvaluateCondition(v, OperatorBetween, thr, upper), "BETWEEN %v", v)
		assert.Equal(t, !want, EvaluateCondition(v, OperatorOutside, thr, upper), "OUTSIDE %v", v)
	}
}

func TestEvaluateCondition_RangeWithoutSecondary(t *testing.T) {
	t.Parallel()

	thr := entities.NumericThreshold(10)
	assert.False(t, EvaluateCondition(15, OperatorBetween, thr, nil))
	assert.False(t, EvaluateCondition(5, OperatorOutside, thr, nil))
}

func TestEvaluateCondition_TextThreshold(t *testing.T) {
	t.Parallel()

	thr := entities.Threshold{Kind: entities.ThresholdText, Text: "NaN"}
	assert.False(t, EvaluateCondition(1, OperatorEquals, thr, nil))
	assert.True(t, EvaluateCondition(1, OperatorNotEquals, thr, nil))
	assert.False(t, EvaluateCondition(1, OperatorGreaterThan, thr, nil), "ordering ops never match text")

	inf := entities.Threshold{Kind: entities.ThresholdText, Text: "+inf"}
	assert.True(t, EvaluateCondition(posInf(), OperatorEquals, inf, nil))
}

func TestEvaluateCondition_UnknownOperator(t *testing.T) {
	t.Parallel()
	assert.False(t, EvaluateCondition(1, "LIKE", entities.NumericThreshold(1), nil))
}
