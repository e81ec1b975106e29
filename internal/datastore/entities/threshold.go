package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ThresholdKind tags the value held by a Threshold.
type ThresholdKind string

const (
	ThresholdNumeric ThresholdKind = "numeric"
	ThresholdText    ThresholdKind = "text"
)

// Threshold is the primary comparison value of an alert configuration.
// Values that parse as a number are Numeric; anything else is Text.
type Threshold struct {
	Kind   ThresholdKind
	Number float64
	Text   string
}

// NumericThreshold builds a numeric threshold.
func NumericThreshold(v float64) Threshold {
	return Threshold{Kind: ThresholdNumeric, Number: v}
}

// TextThreshold builds a threshold from raw text, promoting it to Numeric
// when the text is a valid number.
func TextThreshold(s string) Threshold {
	trimmed := strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NumericThreshold(v)
	}
	return Threshold{Kind: ThresholdText, Text: s}
}

// IsNumeric reports whether the threshold holds a number.
func (t Threshold) IsNumeric() bool {
	return t.Kind == ThresholdNumeric
}

// Float returns the numeric value and whether it is set.
func (t Threshold) Float() (float64, bool) {
	if t.Kind != ThresholdNumeric {
		return 0, false
	}
	return t.Number, true
}

func (t Threshold) String() string {
	if t.Kind == ThresholdNumeric {
		return strconv.FormatFloat(t.Number, 'g', -1, 64)
	}
	return t.Text
}

// MarshalJSON encodes Numeric thresholds as JSON numbers and Text
// thresholds as strings.
func (t Threshold) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case ThresholdNumeric:
		return json.Marshal(t.Number)
	case ThresholdText:
		return json.Marshal(t.Text)
	default:
		return []byte("null"), nil
	}
}

func (t *Threshold) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*t = NumericThreshold(value)
	case string:
		*t = TextThreshold(value)
	case nil:
		*t = Threshold{}
	default:
		return fmt.Errorf("invalid threshold %v (type %T)", v, v)
	}
	return nil
}

// Value stores the threshold in its textual form.
func (t Threshold) Value() (driver.Value, error) {
	if t.Kind == "" {
		return nil, nil
	}
	return t.String(), nil
}

func (t *Threshold) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Threshold{}
	case string:
		*t = TextThreshold(v)
	case []byte:
		*t = TextThreshold(string(v))
	case float64:
		*t = NumericThreshold(v)
	case int64:
		*t = NumericThreshold(float64(v))
	default:
		return fmt.Errorf("cannot scan %T into Threshold", src)
	}
	return nil
}
