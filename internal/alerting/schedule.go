package alerting

import (
	"math"
	"strings"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/conf"
)

const (
	// DefaultCooldown applies when a cooldown period is empty or unparsable.
	DefaultCooldown = time.Hour
	// DefaultLookback applies when a lookback period is empty or unparsable.
	DefaultLookback = 24 * time.Hour
	// defaultFrequencyStep applies to unknown frequencies.
	defaultFrequencyStep = time.Hour
)

var frequencySteps = map[string]time.Duration{
	FrequencyRealTime:       time.Minute,
	FrequencyEvery5Minutes:  5 * time.Minute,
	FrequencyEvery15Minutes: 15 * time.Minute,
	FrequencyEveryHour:      time.Hour,
	FrequencyEvery4Hours:    4 * time.Hour,
	FrequencyDaily:          24 * time.Hour,
	FrequencyWeekly:         7 * 24 * time.Hour,
}

// FrequencyStep returns the interval between checks for a frequency and
// whether the frequency is known. Unknown frequencies step by one hour.
func FrequencyStep(frequency string) (time.Duration, bool) {
	step, ok := frequencySteps[strings.ToUpper(strings.TrimSpace(frequency))]
	if !ok {
		return defaultFrequencyStep, false
	}
	return step, true
}

// NextCheck returns the next check time for a frequency measured from now.
func NextCheck(frequency string, now time.Time) time.Time {
	step, _ := FrequencyStep(frequency)
	return now.Add(step)
}

// IsDue reports whether a configuration with the given next check time
// should be checked at now. A configuration that was never scheduled is due.
func IsDue(nextCheck *time.Time, now time.Time) bool {
	return nextCheck == nil || !now.Before(*nextCheck)
}

// CooldownElapsed reports whether enough time has passed since the last
// trigger. A configuration that never triggered is always eligible.
func CooldownElapsed(lastTriggered *time.Time, cooldown time.Duration, now time.Time) bool {
	return lastTriggered == nil || !now.Before(lastTriggered.Add(cooldown))
}

// ParseCooldown parses a cooldown period such as "30m", "1h" or "2d". It
// returns DefaultCooldown and false when the period is empty or invalid.
func ParseCooldown(period string) (time.Duration, bool) {
	return parsePeriodOr(period, DefaultCooldown)
}

// ParseLookback parses a lookback period with the same syntax as cooldowns.
// A zero lookback is invalid.
func ParseLookback(period string) (time.Duration, bool) {
	d, ok := parsePeriodOr(period, DefaultLookback)
	if d == 0 {
		return DefaultLookback, false
	}
	return d, ok
}

func parsePeriodOr(period string, fallback time.Duration) (time.Duration, bool) {
	if strings.TrimSpace(period) == "" {
		return fallback, false
	}
	d, err := conf.ParsePeriod(period)
	if err != nil {
		return fallback, false
	}
	return d, true
}

// Deviation returns the percentage by which current differs from
// threshold, rounded to two decimals. A zero threshold yields 0.
func Deviation(current, threshold float64) float64 {
	if threshold == 0 {
		return 0
	}
	return math.Round((current-threshold)/threshold*100*100) / 100
}
