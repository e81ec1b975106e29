package api

import (
	"net/http"
	"slices"
	"sort"

	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/campaignwatch/campaignwatch/internal/notification"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initNotificationRoutes(g *echo.Group) {
	c.Group.GET("/notifications/channels", c.ListChannels)
	g.POST("/notifications/test", c.SendTestNotification)
}

// ListChannels returns the delivery channels alert configurations may use.
func (c *Controller) ListChannels(ctx echo.Context) error {
	if c.notifier == nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Notification service not available",
		})
	}
	channels := c.notifier.Channels()
	sort.Strings(channels)
	return ctx.JSON(http.StatusOK, map[string]any{"channels": channels})
}

type testNotificationRequest struct {
	Channels   []string `json:"channels"`
	Recipients []string `json:"recipients"`
}

// SendTestNotification queues a sample alert so a tenant can check that
// its channels deliver.
func (c *Controller) SendTestNotification(ctx echo.Context) error {
	if c.notifier == nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Notification service not available",
		})
	}

	var body testNotificationRequest
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if len(body.Channels) == 0 {
		body.Channels = []string{"log"}
	}
	known := c.notifier.Channels()
	for _, ch := range body.Channels {
		if !slices.Contains(known, ch) {
			return badRequest(ctx, "Unknown notification channel: "+ch)
		}
	}

	tenantID := ctx.Param("tenant")
	now := c.now().UTC()
	req := &notification.Request{
		ID:         "test-" + now.Format("20060102T150405"),
		TenantID:   tenantID,
		Title:      notification.Title("low", "test_metric"),
		Message:    notification.Message("Test alert", "test_metric", 42, "GREATER_THAN", "40", 5),
		Priority:   notification.PriorityLow,
		Recipients: body.Recipients,
		Channels:   body.Channels,
		Payload: map[string]any{
			"test":         true,
			"tenant_id":    tenantID,
			"metric_name":  "test_metric",
			"metric_value": 42.0,
			"threshold":    40.0,
			"triggered_at": now,
		},
	}
	if err := c.notifier.Notify(ctx.Request().Context(), req); err != nil {
		return c.HandleError(ctx, err, "Failed to queue test notification", http.StatusServiceUnavailable)
	}

	c.log.Debug("test notification queued",
		logger.String("tenant_id", tenantID),
		logger.Any("channels", body.Channels))
	return ctx.JSON(http.StatusAccepted, req)
}
