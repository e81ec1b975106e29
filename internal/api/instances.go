package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/labstack/echo/v4"
)

const (
	defaultInstanceLimit = 50
	maxInstanceLimit     = 200
)

func (c *Controller) initInstanceRoutes(g *echo.Group) {
	g.GET("/instances", c.ListInstances)
	g.GET("/instances/:id", c.GetInstance)
	g.PATCH("/instances/:id/status", c.UpdateInstanceStatus)
}

// ListInstances returns a page of the tenant's alert instances, newest
// first. Filters: alert_id, status, since (RFC 3339), limit, offset.
func (c *Controller) ListInstances(ctx echo.Context) error {
	filter := repository.AlertInstanceFilter{
		TenantID: ctx.Param("tenant"),
		Status:   strings.ToUpper(ctx.QueryParam("status")),
	}
	if p := ctx.QueryParam("alert_id"); p != "" {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return badRequest(ctx, "Invalid alert_id")
		}
		filter.AlertID = uint(v)
	}
	if p := ctx.QueryParam("since"); p != "" {
		t, err := time.Parse(time.RFC3339, p)
		if err != nil {
			return badRequest(ctx, "Invalid since, expected RFC 3339")
		}
		filter.Since = t
	}
	filter.Limit, filter.Offset = pagination(ctx, defaultInstanceLimit, maxInstanceLimit)

	items, total, err := c.instances.ListInstances(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert instances", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"instances": items,
		"total":     total,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

// GetInstance returns one alert instance of the tenant.
func (c *Controller) GetInstance(ctx echo.Context) error {
	inst, err := c.instances.GetInstance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Alert instance not found", 0)
	}
	if inst.TenantID != ctx.Param("tenant") {
		return notFound(ctx, "Alert instance not found")
	}
	return ctx.JSON(http.StatusOK, inst)
}

// UpdateInstanceStatus moves an ACTIVE instance to a terminal status.
func (c *Controller) UpdateInstanceStatus(ctx echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	status := strings.ToUpper(strings.TrimSpace(body.Status))
	if !repository.IsTerminalInstanceStatus(status) {
		return badRequest(ctx, "Status must be one of ACKNOWLEDGED, RESOLVED, FALSE_POSITIVE, EXPIRED")
	}

	reqCtx := ctx.Request().Context()
	id := ctx.Param("id")
	inst, err := c.instances.GetInstance(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "Alert instance not found", 0)
	}
	if inst.TenantID != ctx.Param("tenant") {
		return notFound(ctx, "Alert instance not found")
	}

	now := c.now()
	if err := c.instances.UpdateStatus(reqCtx, id, status, now); err != nil {
		return c.HandleError(ctx, err, "Failed to update alert instance status", 0)
	}

	c.log.Info("alert instance status changed",
		logger.String("instance_id", id),
		logger.String("from", inst.Status),
		logger.String("to", status))
	return ctx.JSON(http.StatusOK, map[string]any{
		"id":                id,
		"status":            status,
		"status_changed_at": now.UTC(),
	})
}
