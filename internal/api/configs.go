package api

import (
	"net/http"
	"strconv"

	"github.com/campaignwatch/campaignwatch/internal/alerting"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initConfigRoutes(g *echo.Group) {
	g.GET("/configs", c.ListConfigs)
	g.POST("/configs", c.CreateConfig)
	g.GET("/configs/:id", c.GetConfig)
	g.PUT("/configs/:id", c.UpdateConfig)
	g.DELETE("/configs/:id", c.DeleteConfig)
	g.PATCH("/configs/:id/toggle", c.ToggleConfig)
	g.POST("/evaluate", c.Evaluate)
}

// GetSchema returns the accepted operators, frequencies and severities.
func (c *Controller) GetSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, alerting.GetSchema())
}

// ListConfigs returns the tenant's configurations, optionally filtered by
// campaign_id, metric and active.
func (c *Controller) ListConfigs(ctx echo.Context) error {
	filter := repository.AlertConfigFilter{
		TenantID:   ctx.Param("tenant"),
		CampaignID: ctx.QueryParam("campaign_id"),
		MetricName: ctx.QueryParam("metric"),
	}
	if p := ctx.QueryParam("active"); p != "" {
		v, err := strconv.ParseBool(p)
		if err != nil {
			return badRequest(ctx, "Invalid active filter")
		}
		filter.Active = &v
	}

	configs, err := c.configs.ListConfigs(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert configurations", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"configs": configs,
		"count":   len(configs),
	})
}

// GetConfig returns one configuration of the tenant.
func (c *Controller) GetConfig(ctx echo.Context) error {
	cfg, err := c.tenantConfig(ctx)
	if err != nil || cfg == nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cfg)
}

// CreateConfig validates and stores a new configuration. Its first check
// is scheduled one frequency step from now.
func (c *Controller) CreateConfig(ctx echo.Context) error {
	cfg := entities.AlertConfig{IsActive: true}
	if err := ctx.Bind(&cfg); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	cfg.ID = 0
	cfg.TenantID = ctx.Param("tenant")
	resetSchedule(&cfg)
	alerting.ApplyDefaults(&cfg, c.now())

	if err := alerting.ValidateConfig(&cfg); err != nil {
		return c.HandleError(ctx, err, "Invalid alert configuration", http.StatusBadRequest)
	}
	if err := c.configs.CreateConfig(ctx.Request().Context(), &cfg); err != nil {
		return c.HandleError(ctx, err, "Failed to create alert configuration", http.StatusInternalServerError)
	}

	c.log.Info("alert configuration created",
		logger.String("tenant_id", cfg.TenantID),
		logger.Uint64("id", uint64(cfg.ID)),
		logger.String("metric", cfg.MetricName))
	return ctx.JSON(http.StatusCreated, cfg)
}

// UpdateConfig replaces a configuration. Trigger history is kept, an
// omitted is_active keeps the current flag, and the next check is
// rescheduled from now unless the pending one is later.
func (c *Controller) UpdateConfig(ctx echo.Context) error {
	existing, err := c.tenantConfig(ctx)
	if err != nil || existing == nil {
		return err
	}

	cfg := entities.AlertConfig{IsActive: existing.IsActive}
	if err := ctx.Bind(&cfg); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	cfg.ID = existing.ID
	cfg.TenantID = existing.TenantID
	cfg.CreatedAt = existing.CreatedAt
	cfg.TriggerCount = existing.TriggerCount
	cfg.LastTriggered = existing.LastTriggered
	cfg.LastChecked = existing.LastChecked
	cfg.NextCheck = nil
	alerting.ApplyDefaults(&cfg, c.now())
	if existing.NextCheck != nil && existing.NextCheck.After(*cfg.NextCheck) {
		cfg.NextCheck = existing.NextCheck
	}

	if err := alerting.ValidateConfig(&cfg); err != nil {
		return c.HandleError(ctx, err, "Invalid alert configuration", http.StatusBadRequest)
	}
	if err := c.configs.UpdateConfig(ctx.Request().Context(), &cfg); err != nil {
		return c.HandleError(ctx, err, "Failed to update alert configuration", 0)
	}
	return ctx.JSON(http.StatusOK, cfg)
}

// DeleteConfig removes a configuration.
func (c *Controller) DeleteConfig(ctx echo.Context) error {
	cfg, err := c.tenantConfig(ctx)
	if err != nil || cfg == nil {
		return err
	}
	if err := c.configs.DeleteConfig(ctx.Request().Context(), cfg.ID); err != nil {
		return c.HandleError(ctx, err, "Failed to delete alert configuration", 0)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ToggleConfig enables or disables a configuration.
func (c *Controller) ToggleConfig(ctx echo.Context) error {
	cfg, err := c.tenantConfig(ctx)
	if err != nil || cfg == nil {
		return err
	}

	var body struct {
		Active *bool `json:"active"`
	}
	if err := ctx.Bind(&body); err != nil || body.Active == nil {
		return badRequest(ctx, "Field active is required")
	}
	if err := c.configs.ToggleConfig(ctx.Request().Context(), cfg.ID, *body.Active); err != nil {
		return c.HandleError(ctx, err, "Failed to toggle alert configuration", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": cfg.ID, "active": *body.Active})
}

// Evaluate runs one evaluation cycle for the tenant immediately. Scheduling
// gates still apply, so configurations that are not due are skipped.
func (c *Controller) Evaluate(ctx echo.Context) error {
	if c.engine == nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Alerting engine not available"})
	}
	tenant := ctx.Param("tenant")
	created, err := c.engine.RunCycle(ctx.Request().Context(), tenant)
	if err != nil {
		return c.HandleError(ctx, err, "Evaluation failed", 0)
	}
	if created == nil {
		created = []*entities.AlertInstance{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"tenant_id": tenant,
		"instances": created,
		"count":     len(created),
	})
}

// tenantConfig loads the :id configuration and checks it belongs to the
// :tenant. When it returns a nil config the response has been written.
func (c *Controller) tenantConfig(ctx echo.Context) (*entities.AlertConfig, error) {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return nil, badRequest(ctx, "Invalid configuration ID")
	}
	cfg, err := c.configs.GetConfig(ctx.Request().Context(), id)
	if err != nil {
		return nil, c.HandleError(ctx, err, "Alert configuration not found", 0)
	}
	if cfg.TenantID != ctx.Param("tenant") {
		return nil, notFound(ctx, "Alert configuration not found")
	}
	return cfg, nil
}

// resetSchedule clears engine owned fields a client may have sent.
func resetSchedule(cfg *entities.AlertConfig) {
	cfg.TriggerCount = 0
	cfg.LastTriggered = nil
	cfg.LastChecked = nil
	cfg.NextCheck = nil
}
