// Package telemetry forwards categorized errors to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/getsentry/sentry-go"
)

// quiet categories describe tenant data or user input, not service faults
var quiet = map[errors.Category]bool{
	errors.CategoryDataUnavailable: true,
	errors.CategoryValidation:      true,
	errors.CategoryConfig:          true,
}

// SentryReporter implements errors.Reporter.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a reporter with its own hub.
func NewSentryReporter(settings conf.SentrySettings, release string, opts ...func(*sentry.ClientOptions)) (*SentryReporter, error) {
	clientOpts := sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		SampleRate:  settings.SampleRate,
		Release:     release,
	}
	if clientOpts.SampleRate <= 0 {
		clientOpts.SampleRate = 1.0
	}
	for _, o := range opts {
		o(&clientOpts)
	}
	client, err := sentry.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Report sends err unless its category is one of the quiet ones.
func (r *SentryReporter) Report(err *errors.EnhancedError) {
	if err == nil || quiet[err.GetCategory()] {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", err.GetComponent())
		scope.SetTag("category", string(err.GetCategory()))
		if ctx := err.GetContext(); len(ctx) > 0 {
			scope.SetContext("error", sentry.Context(ctx))
		}
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// Setup installs a SentryReporter as the process reporter when enabled and
// returns a flush function for shutdown.
func Setup(settings conf.SentrySettings, release string) (func(), error) {
	if !settings.Enabled {
		return func() {}, nil
	}
	r, err := NewSentryReporter(settings, release)
	if err != nil {
		return nil, err
	}
	errors.SetReporter(r)
	return func() {
		r.Flush(2 * time.Second)
		errors.SetReporter(nil)
	}, nil
}
