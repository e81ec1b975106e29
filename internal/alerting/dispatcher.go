package alerting

import (
	"github.com/campaignwatch/campaignwatch/internal/datastore/entities"
	"github.com/campaignwatch/campaignwatch/internal/notification"
)

// buildRequest renders the notification for a triggered instance. Its
// payload carries the instance facts so channels can format their own
// bodies.
func buildRequest(id string, cc *CompiledConfig, inst *entities.AlertInstance) *notification.Request {
	cfg := cc.Config

	payload := map[string]any{
		"alert_id":             cfg.ID,
		"alert_name":           cfg.Name,
		"instance_id":          inst.ID,
		"tenant_id":            inst.TenantID,
		"metric_name":          inst.MetricName,
		"metric_value":         inst.MetricValue,
		"threshold":            inst.ThresholdValue.String(),
		"deviation_percentage": inst.DeviationPercentage,
		"severity":             cc.Severity,
		"triggered_at":         inst.TriggeredAt,
	}
	if inst.CampaignID != nil {
		payload["campaign_id"] = *inst.CampaignID
	}
	if inst.MLConfidence != nil {
		payload["ml_confidence"] = *inst.MLConfidence
	}
	if t, ok := inst.Context[ContextTrend]; ok {
		payload[ContextTrend] = t
	}

	return &notification.Request{
		ID:       id,
		TenantID: inst.TenantID,
		Title:    notification.Title(cc.Severity, inst.MetricName),
		Message: notification.Message(cfg.Name, inst.MetricName, inst.MetricValue,
			cc.Operator, inst.ThresholdValue.String(), inst.DeviationPercentage),
		Priority:   notification.PriorityForSeverity(cc.Severity),
		Recipients: append([]string(nil), cfg.Recipients...),
		Channels:   append([]string(nil), inst.NotificationChannels...),
		Payload:    payload,
	}
}
