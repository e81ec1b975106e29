// Package api exposes alert configurations, alert instances and anomaly
// models over a JSON HTTP API.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/anomaly"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/notification"
	"github.com/campaignwatch/campaignwatch/internal/observability"
	"github.com/labstack/echo/v4"
)

// Evaluator is the part of the alerting engine the API drives.
// *alerting.Engine implements it.
type Evaluator interface {
	RunCycle(ctx context.Context, tenantID string) ([]*entities.AlertInstance, error)
	RetrainModel(ctx context.Context, tenantID, metricName string, windowDays int) (anomaly.Status, error)
	ModelStatus(tenantID, metricName string) (anomaly.Status, bool)
}

// Notifier queues notifications and lists the channels it can deliver to.
// *notification.Service implements it.
type Notifier interface {
	Notify(ctx context.Context, req *notification.Request) error
	Channels() []string
}

// Deps are the collaborators of a Controller. Models, Notifier and Metrics
// are optional.
type Deps struct {
	Configs   repository.AlertConfigRepository
	Instances repository.AlertInstanceRepository
	Models    repository.AnomalyModelRepository
	Engine    Evaluator
	Notifier  Notifier
	Metrics   *observability.Metrics
}

// Controller holds the API handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	configs   repository.AlertConfigRepository
	instances repository.AlertInstanceRepository
	models    repository.AnomalyModelRepository
	engine    Evaluator
	notifier  Notifier
	metrics   *observability.Metrics
	log       logger.Logger
	now       func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for scheduling and status
// changes.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New registers every route on e under /api/v1.
func New(e *echo.Echo, deps Deps, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v1"),
		configs:   deps.Configs,
		instances: deps.Instances,
		models:    deps.Models,
		engine:    deps.Engine,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		log:       log.Module("api"),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.Health)
	c.Group.GET("/schema", c.GetSchema)
	if c.metrics != nil {
		h := echo.WrapHandler(c.metrics.Handler())
		c.Group.GET("/metrics", h)
		c.Echo.GET("/metrics", h)
	}

	tenant := c.Group.Group("/tenants/:tenant")
	c.initConfigRoutes(tenant)
	c.initInstanceRoutes(tenant)
	c.initModelRoutes(tenant)
	c.initNotificationRoutes(tenant)
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   c.now().UTC(),
	})
}

// HandleError logs err and writes a JSON error response. The status code is
// derived from err when status is zero.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, status int) error {
	if status == 0 {
		status = statusFor(err)
	}
	if status >= http.StatusInternalServerError {
		c.log.Error(message,
			logger.String("path", ctx.Path()),
			logger.Error(err))
	} else {
		c.log.Debug(message,
			logger.String("path", ctx.Path()),
			logger.Error(err))
	}

	body := map[string]string{"error": message}
	if status < http.StatusInternalServerError && err != nil {
		body["detail"] = err.Error()
	}
	return ctx.JSON(status, body)
}

// statusFor maps sentinel errors and error categories to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrAlertConfigNotFound),
		errors.Is(err, repository.ErrAlertInstanceNotFound),
		errors.Is(err, repository.ErrAnomalyModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidStatusTransition):
		return http.StatusConflict
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryConfig:
		return http.StatusBadRequest
	case errors.CategoryDataUnavailable:
		return http.StatusUnprocessableEntity
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func notFound(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// pagination reads limit and offset, applying a default and a cap.
func pagination(ctx echo.Context, def, maxLimit int) (limit, offset int) {
	limit = def
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
