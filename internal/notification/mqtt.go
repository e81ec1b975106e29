package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const defaultMQTTTimeout = 10 * time.Second

// MQTTProvider publishes requests as JSON to <topic>/<tenant_id>.
type MQTTProvider struct {
	settings conf.MQTTSettings
	timeout  time.Duration
	log      logger.Logger

	mu     sync.Mutex
	client paho.Client
}

// NewMQTTProvider creates a provider. The broker connection is opened on
// first use and kept for later sends.
func NewMQTTProvider(settings conf.MQTTSettings, log logger.Logger) *MQTTProvider {
	timeout := settings.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultMQTTTimeout
	}
	return &MQTTProvider{settings: settings, timeout: timeout, log: log.Module("notification.mqtt")}
}

func (p *MQTTProvider) Name() string { return "mqtt" }

func (p *MQTTProvider) connect() (paho.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnectionOpen() {
		return p.client, nil
	}

	opts := paho.NewClientOptions().
		AddBroker(p.settings.Broker).
		SetClientID(p.settings.ClientID).
		SetConnectTimeout(p.timeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("mqtt connection lost", logger.Error(err))
		})
	if p.settings.Username != "" {
		opts.SetUsername(p.settings.Username)
		opts.SetPassword(p.settings.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", p.settings.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", p.settings.Broker, err)
	}
	p.client = client
	return client, nil
}

// Topic returns the topic a request for tenantID is published to.
func (p *MQTTProvider) Topic(tenantID string) string {
	return p.settings.Topic + "/" + tenantID
}

func (p *MQTTProvider) Send(ctx context.Context, req *Request) error {
	client, err := p.connect()
	if err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode mqtt payload: %w", err)
	}

	token := client.Publish(p.Topic(req.TenantID), byte(p.settings.QoS), p.settings.Retain, body)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt publish to %s timed out", p.Topic(req.TenantID))
	}
}

// Close disconnects from the broker.
func (p *MQTTProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
}
