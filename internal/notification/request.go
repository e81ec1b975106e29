// Package notification delivers triggered alerts to log, shoutrrr and MQTT
// channels through an asynchronous queue.
package notification

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priority is the delivery urgency of a request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PriorityForSeverity maps an alert severity to a delivery priority.
// Unknown severities are normal.
func PriorityForSeverity(severity string) Priority {
	switch strings.ToLower(severity) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// Request is one notification for one triggered alert instance.
type Request struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Priority   Priority       `json:"priority"`
	Recipients []string       `json:"recipients"`
	Channels   []string       `json:"channels"`
	Payload    map[string]any `json:"payload"`
}

var titleCaser = cases.Title(language.English)

// Title renders "<Severity> alert: <Metric Name>" for a snake_case metric.
func Title(severity, metricName string) string {
	metric := titleCaser.String(strings.NewReplacer("_", " ", ".", " ").Replace(metricName))
	if severity == "" {
		return fmt.Sprintf("Alert: %s", metric)
	}
	return fmt.Sprintf("%s alert: %s", titleCaser.String(severity), metric)
}

// Message renders the human readable body for a threshold breach.
func Message(alertName, metricName string, value float64, operator, threshold string, deviation float64) string {
	var b strings.Builder
	if alertName != "" {
		fmt.Fprintf(&b, "%s: ", alertName)
	}
	fmt.Fprintf(&b, "%s is %g (%s %s)", metricName, value, operator, threshold)
	if deviation != 0 {
		fmt.Fprintf(&b, ", %+.2f%% from threshold", deviation)
	}
	return b.String()
}
