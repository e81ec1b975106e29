package alerting

import (
	"strconv"
	"strings"

	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
)

// NormalizeOperator returns the canonical operator name for op, or "" when
// op is not recognized.
func NormalizeOperator(op string) string {
	trimmed := strings.TrimSpace(op)
	if alias, ok := operatorAliases[trimmed]; ok {
		return alias
	}
	if alias, ok := operatorAliases[strings.ToLower(trimmed)]; ok {
		return alias
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case OperatorGreaterThan, OperatorLessThan, OperatorEquals, OperatorNotEquals,
		OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorBetween, OperatorOutside:
		return upper
	default:
		return ""
	}
}

// IsRangeOperator reports whether op needs a secondary threshold.
func IsRangeOperator(op string) bool {
	op = NormalizeOperator(op)
	return op == OperatorBetween || op == OperatorOutside
}

// isOrderingOperator reports whether op compares magnitudes and therefore
// needs a numeric threshold.
func isOrderingOperator(op string) bool {
	switch op {
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual,
		OperatorBetween, OperatorOutside:
		return true
	default:
		return false
	}
}

// EvaluateCondition compares value against the threshold(s) using op.
// Range operators are inclusive of their bounds for BETWEEN and exclusive
// for OUTSIDE. A range operator without a secondary threshold, an unknown
// operator, or a text threshold used with an ordering operator all yield
// false.
func EvaluateCondition(value float64, op string, threshold entities.Threshold, secondary *float64) bool {
	op = NormalizeOperator(op)
	if op == "" {
		return false
	}

	primary, numeric := threshold.Float()
	if !numeric {
		return evaluateText(value, op, threshold)
	}

	switch op {
	case OperatorGreaterThan:
		return value > primary
	case OperatorLessThan:
		return value < primary
	case OperatorEquals:
		return value == primary
	case OperatorNotEquals:
		return value != primary
	case OperatorGreaterOrEqual:
		return value >= primary
	case OperatorLessOrEqual:
		return value <= primary
	case OperatorBetween:
		if secondary == nil {
			return false
		}
		return primary <= value && value <= *secondary
	case OperatorOutside:
		if secondary == nil {
			return false
		}
		return value < primary || value > *secondary
	default:
		return false
	}
}

// evaluateText handles text thresholds. Only equality operators are
// defined; the value is compared in its shortest decimal form,
// case-insensitively.
func evaluateText(value float64, op string, threshold entities.Threshold) bool {
	if threshold.Kind != entities.ThresholdText || isOrderingOperator(op) {
		return false
	}
	formatted := strconv.FormatFloat(value, 'g', -1, 64)
	switch op {
	case OperatorEquals:
		return strings.EqualFold(formatted, strings.TrimSpace(threshold.Text))
	case OperatorNotEquals:
		return !strings.EqualFold(formatted, strings.TrimSpace(threshold.Text))
	default:
		return false
	}
}
