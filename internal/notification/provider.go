package notification

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/campaignwatch/campaignwatch/internal/logger"
)

// Provider delivers requests for one channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, req *Request) error
}

// LogProvider writes requests to the application log.
type LogProvider struct {
	log logger.Logger
}

// NewLogProvider creates a provider that logs every request at info level.
func NewLogProvider(log logger.Logger) *LogProvider {
	return &LogProvider{log: log.Module("notification.log")}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(_ context.Context, req *Request) error {
	payload, _ := json.Marshal(req.Payload)
	p.log.Info(req.Title,
		logger.String("notification_id", req.ID),
		logger.String("tenant_id", req.TenantID),
		logger.String("priority", string(req.Priority)),
		logger.String("message", req.Message),
		logger.String("recipients", strings.Join(req.Recipients, ",")),
		logger.String("payload", string(payload)))
	return nil
}
