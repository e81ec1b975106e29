package api

import (
	"net/http"

	"github.com/campaignwatch/campaignwatch/internal/anomaly"
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initModelRoutes(g *echo.Group) {
	g.GET("/models", c.ListModels)
	g.GET("/models/:metric", c.GetModel)
	g.POST("/models/:metric/retrain", c.RetrainModel)
}

// ListModels returns the persisted metadata of the tenant's models.
func (c *Controller) ListModels(ctx echo.Context) error {
	if c.models == nil {
		return ctx.JSON(http.StatusOK, map[string]any{"models": []entities.AnomalyModelRecord{}, "count": 0})
	}
	recs, err := c.models.ListModels(ctx.Request().Context(), ctx.Param("tenant"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list anomaly models", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"models": recs, "count": len(recs)})
}

// GetModel reports the in-memory state of a model together with its
// persisted metadata.
func (c *Controller) GetModel(ctx echo.Context) error {
	key := anomaly.Key{TenantID: ctx.Param("tenant"), MetricName: ctx.Param("metric")}

	resp := map[string]any{"key": key.String()}
	found := false
	if c.engine != nil {
		if status, ok := c.engine.ModelStatus(key.TenantID, key.MetricName); ok {
			resp["status"] = status
			found = true
		}
	}
	if c.models != nil {
		rec, err := c.models.GetModel(ctx.Request().Context(), key.String())
		switch {
		case err == nil:
			resp["record"] = rec
			found = true
		case !errors.Is(err, repository.ErrAnomalyModelNotFound):
			return c.HandleError(ctx, err, "Failed to get anomaly model", http.StatusInternalServerError)
		}
	}
	if !found {
		return notFound(ctx, "Anomaly model not found")
	}
	return ctx.JSON(http.StatusOK, resp)
}

// RetrainModel retrains a metric's model from its training window.
func (c *Controller) RetrainModel(ctx echo.Context) error {
	if c.engine == nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Alerting engine not available"})
	}

	var body struct {
		TrainingWindowDays int `json:"training_window_days"`
	}
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(&body); err != nil {
			return badRequest(ctx, "Invalid request body")
		}
	}
	if body.TrainingWindowDays < 0 {
		return badRequest(ctx, "training_window_days must not be negative")
	}

	status, err := c.engine.RetrainModel(ctx.Request().Context(),
		ctx.Param("tenant"), ctx.Param("metric"), body.TrainingWindowDays)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrain anomaly model", 0)
	}
	return ctx.JSON(http.StatusOK, status)
}
