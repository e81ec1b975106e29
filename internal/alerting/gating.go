package alerting

import "slices"

// Signal names one input to the trigger decision.
type Signal string

const (
	SignalCondition  Signal = "condition"
	SignalML         Signal = "ml"
	SignalTrend      Signal = "trend"
	SignalCompetitor Signal = "competitor"
)

// GatingPolicy splits signals into gating ones, which must pass for an
// instance to be created, and enriching ones, which are only attached to
// the instance context. The condition always gates.
type GatingPolicy struct {
	Gating    []Signal
	Enriching []Signal
}

// DefaultGatingPolicy gates on the condition and the anomaly model and
// uses trend and competitor results as context only.
func DefaultGatingPolicy() GatingPolicy {
	return GatingPolicy{
		Gating:    []Signal{SignalCondition, SignalML},
		Enriching: []Signal{SignalTrend, SignalCompetitor},
	}
}

// Gates reports whether s must pass.
func (p GatingPolicy) Gates(s Signal) bool {
	return s == SignalCondition || slices.Contains(p.Gating, s)
}

// Enriches reports whether s is computed for context. Gating signals are
// recorded in the context as well.
func (p GatingPolicy) Enriches(s Signal) bool {
	return p.Gates(s) || slices.Contains(p.Enriching, s)
}
