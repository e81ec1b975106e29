package alerting

import "slices"

// Schema lists the values accepted by alert configurations, for API clients
// building configuration forms.
type Schema struct {
	Operators    []OperatorSchema  `json:"operators"`
	Frequencies  []FrequencySchema `json:"frequencies"`
	Severities   []string          `json:"severities"`
	TriggerTypes []string          `json:"trigger_types"`
	Statuses     []string          `json:"statuses"`
}

// OperatorSchema describes one condition operator.
type OperatorSchema struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Aliases   []string `json:"aliases"`
	Range     bool     `json:"range"`      // needs a secondary threshold
	TextValue bool     `json:"text_value"` // accepts a text threshold
}

// FrequencySchema describes one check frequency.
type FrequencySchema struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Seconds int64  `json:"seconds"`
}

var operatorLabels = []struct{ name, label string }{
	{OperatorGreaterThan, "greater than"},
	{OperatorLessThan, "less than"},
	{OperatorEquals, "equals"},
	{OperatorNotEquals, "does not equal"},
	{OperatorGreaterOrEqual, "greater or equal"},
	{OperatorLessOrEqual, "less or equal"},
	{OperatorBetween, "between (inclusive)"},
	{OperatorOutside, "outside"},
}

var frequencyLabels = []struct{ name, label string }{
	{FrequencyRealTime, "Real time"},
	{FrequencyEvery5Minutes, "Every 5 minutes"},
	{FrequencyEvery15Minutes, "Every 15 minutes"},
	{FrequencyEveryHour, "Every hour"},
	{FrequencyEvery4Hours, "Every 4 hours"},
	{FrequencyDaily, "Daily"},
	{FrequencyWeekly, "Weekly"},
}

// GetSchema returns the configuration catalog.
func GetSchema() Schema {
	aliases := make(map[string][]string)
	for alias, op := range operatorAliases {
		aliases[op] = append(aliases[op], alias)
	}

	s := Schema{
		Severities:   []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical},
		TriggerTypes: []string{TriggerTypeThreshold, TriggerTypeAnomaly, TriggerTypeTrend},
		Statuses:     []string{ConfigStatusActive, ConfigStatusPaused, ConfigStatusArchived},
	}
	for _, o := range operatorLabels {
		a := aliases[o.name]
		slices.Sort(a)
		s.Operators = append(s.Operators, OperatorSchema{
			Name:      o.name,
			Label:     o.label,
			Aliases:   a,
			Range:     IsRangeOperator(o.name),
			TextValue: !isOrderingOperator(o.name),
		})
	}
	for _, f := range frequencyLabels {
		step, _ := FrequencyStep(f.name)
		s.Frequencies = append(s.Frequencies, FrequencySchema{
			Name:    f.name,
			Label:   f.label,
			Seconds: int64(step.Seconds()),
		})
	}
	return s
}
