// Package alerting evaluates tenant alert configurations against metric
// series and records alert instances when they fire.
package alerting

// Condition operators. Each has a symbolic alias accepted on input.
const (
	OperatorGreaterThan    = "GREATER_THAN"
	OperatorLessThan       = "LESS_THAN"
	OperatorEquals         = "EQUALS"
	OperatorNotEquals      = "NOT_EQUALS"
	OperatorGreaterOrEqual = "GREATER_OR_EQUAL"
	OperatorLessOrEqual    = "LESS_OR_EQUAL"
	OperatorBetween        = "BETWEEN"
	OperatorOutside        = "OUTSIDE"
)

// Check frequencies.
const (
	FrequencyRealTime       = "REAL_TIME"
	FrequencyEvery5Minutes  = "EVERY_5_MINUTES"
	FrequencyEvery15Minutes = "EVERY_15_MINUTES"
	FrequencyEveryHour      = "EVERY_HOUR"
	FrequencyEvery4Hours    = "EVERY_4_HOURS"
	FrequencyDaily          = "DAILY"
	FrequencyWeekly         = "WEEKLY"
)

// Trigger types.
const (
	TriggerTypeThreshold = "threshold"
	TriggerTypeAnomaly   = "anomaly"
	TriggerTypeTrend     = "trend"
)

// Configuration statuses. Only ACTIVE configurations are scheduled.
const (
	ConfigStatusActive   = "ACTIVE"
	ConfigStatusPaused   = "PAUSED"
	ConfigStatusArchived = "ARCHIVED"
)

// Severities map onto notification priorities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Context keys written into AlertInstance.Context.
const (
	ContextCondition      = "condition"
	ContextHistoricalData = "historical_data"
	ContextMLResult       = "ml_result"
	ContextTrend          = "trend"
	ContextCompetitor     = "competitor"
)

// operatorAliases maps accepted spellings onto canonical operator names.
var operatorAliases = map[string]string{
	">":  OperatorGreaterThan,
	"<":  OperatorLessThan,
	"==": OperatorEquals,
	"=":  OperatorEquals,
	"!=": OperatorNotEquals,
	">=": OperatorGreaterOrEqual,
	"<=": OperatorLessOrEqual,

	"greater_than":     OperatorGreaterThan,
	"less_than":        OperatorLessThan,
	"equals":           OperatorEquals,
	"not_equals":       OperatorNotEquals,
	"greater_or_equal": OperatorGreaterOrEqual,
	"less_or_equal":    OperatorLessOrEqual,
	"between":          OperatorBetween,
	"outside":          OperatorOutside,
}
