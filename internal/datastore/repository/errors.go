package repository

import "github.com/campaignwatch/campaignwatch/internal/errors"

var (
	// ErrAlertConfigNotFound is returned when an alert configuration does not exist.
	ErrAlertConfigNotFound = errors.NewStd("alert config not found")
	// ErrAlertInstanceNotFound is returned when an alert instance does not exist.
	ErrAlertInstanceNotFound = errors.NewStd("alert instance not found")
	// ErrAnomalyModelNotFound is returned when no metadata exists for a model key.
	ErrAnomalyModelNotFound = errors.NewStd("anomaly model not found")
	// ErrInvalidStatusTransition is returned when an instance status change is
	// not allowed from its current status.
	ErrInvalidStatusTransition = errors.NewStd("invalid alert instance status transition")
)
