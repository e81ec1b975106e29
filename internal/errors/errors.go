// Package errors extends the standard library errors package with
// categorized, context-carrying errors. Build() hands every error to the
// registered Reporter so telemetry sees failures without each call site
// wiring it in.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// Category classifies an error for handling and telemetry.
type Category string

const (
	// CategoryDataUnavailable means a metric series could not be fetched or was empty.
	CategoryDataUnavailable Category = "data-unavailable"
	// CategoryModel covers anomaly model training and scoring failures.
	CategoryModel Category = "model"
	// CategoryConfig covers malformed alert configurations.
	CategoryConfig Category = "config"
	// CategoryNotification covers notification dispatch failures.
	CategoryNotification Category = "notification"
	CategoryDatabase     Category = "database"
	CategoryNetwork      Category = "network"
	CategoryValidation   Category = "validation"
	CategoryGeneric      Category = "generic"
)

// Re-exported standard library helpers so callers import a single package.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	Join   = stderrors.Join
	Unwrap = stderrors.Unwrap
)

// NewStd creates a plain error. Use it for package level sentinels.
func NewStd(text string) error {
	return stderrors.New(text)
}

// EnhancedError wraps an error with component, category and context.
type EnhancedError struct {
	Err       error
	component string
	category  Category
	context   map[string]any
	timestamp time.Time
}

func (e *EnhancedError) Error() string {
	return e.Err.Error()
}

func (e *EnhancedError) Unwrap() error {
	return e.Err
}

// GetComponent returns the component that produced the error.
func (e *EnhancedError) GetComponent() string { return e.component }

// GetCategory returns the error category.
func (e *EnhancedError) GetCategory() Category { return e.category }

// GetTimestamp returns when the error was built.
func (e *EnhancedError) GetTimestamp() time.Time { return e.timestamp }

// GetContext returns a copy of the attached context.
func (e *EnhancedError) GetContext() map[string]any {
	return maps.Clone(e.context)
}

// CategoryOf returns the category of the first EnhancedError in the chain,
// or CategoryGeneric.
func CategoryOf(err error) Category {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.category
	}
	return CategoryGeneric
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, c Category) bool {
	return err != nil && CategoryOf(err) == c
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err, category: CategoryGeneric}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (b *ErrorBuilder) Component(name string) *ErrorBuilder {
	b.component = name
	return b
}

func (b *ErrorBuilder) Category(c Category) *ErrorBuilder {
	b.category = c
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the error and forwards it to the active reporter.
func (b *ErrorBuilder) Build() error {
	if b.err == nil {
		b.err = stderrors.New("unknown error")
	}
	ee := &EnhancedError{
		Err:       b.err,
		component: b.component,
		category:  b.category,
		context:   b.context,
		timestamp: time.Now(),
	}
	report(ee)
	return ee
}
