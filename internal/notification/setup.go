package notification

import (
	"sort"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/logger"
)

// NewFromSettings builds a Service with the log channel, one shoutrrr
// provider per configured channel and, when enabled, the mqtt channel.
// The returned MQTT provider is nil when MQTT is disabled.
func NewFromSettings(settings conf.NotificationSettings, sendTimeout conf.Duration, log logger.Logger, recorder Recorder) (*Service, *MQTTProvider, error) {
	svc := NewService(Config{QueueSize: settings.QueueSize, SendTimeout: sendTimeout.Std()}, log, recorder)
	svc.Register("log", NewLogProvider(log))

	names := make([]string, 0, len(settings.Channels))
	for name := range settings.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := NewShoutrrrProvider(name, settings.Channels[name], sendTimeout.Std())
		if err != nil {
			svc.Stop()
			return nil, nil, err
		}
		svc.Register(name, p)
	}

	var mqttProvider *MQTTProvider
	if settings.MQTT.Enabled {
		mqttProvider = NewMQTTProvider(settings.MQTT, log)
		svc.Register("mqtt", mqttProvider)
	}
	return svc, mqttProvider, nil
}
