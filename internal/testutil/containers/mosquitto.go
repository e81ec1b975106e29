//go:build integration

package containers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// anonymous listener on the default port
const mosquittoConfig = "listener 1883\nallow_anonymous true\npersistence false\n"

// MosquittoContainer runs an Eclipse Mosquitto broker for the MQTT channel.
type MosquittoContainer struct {
	container testcontainers.Container
	brokerURL string
}

// NewMosquittoContainer starts eclipse-mosquitto with anonymous access. An
// empty tag uses "2.0".
func NewMosquittoContainer(ctx context.Context, tag string) (*MosquittoContainer, error) {
	if tag == "" {
		tag = "2.0"
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:" + tag,
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto/config/test.conf"},
			Files: []testcontainers.ContainerFile{{
				Reader:            strings.NewReader(mosquittoConfig),
				ContainerFilePath: "/mosquitto/config/test.conf",
				FileMode:          0o644,
			}},
			WaitingFor: wait.ForListeningPort("1883/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mosquitto container: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mosquitto host: %w", err)
	}
	port, err := ctr.MappedPort(ctx, "1883")
	if err != nil {
		_ = ctr.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mosquitto port: %w", err)
	}

	return &MosquittoContainer{
		container: ctr,
		brokerURL: "tcp://" + net.JoinHostPort(host, strconv.Itoa(port.Int())),
	}, nil
}

// BrokerURL returns the tcp:// URL of the broker.
func (c *MosquittoContainer) BrokerURL() string {
	return c.brokerURL
}

// Subscribe connects a raw client and delivers payloads published to topic
// on the returned channel.
func (c *MosquittoContainer) Subscribe(topic string) (<-chan []byte, func(), error) {
	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID(fmt.Sprintf("test-sub-%d", time.Now().UnixNano())).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, nil, fmt.Errorf("subscriber connect failed: %v", token.Error())
	}

	ch := make(chan []byte, 16)
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		ch <- msg.Payload()
	})
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		client.Disconnect(100)
		return nil, nil, fmt.Errorf("subscribe to %s failed: %v", topic, token.Error())
	}
	return ch, func() { client.Disconnect(100) }, nil
}

// Terminate stops and removes the container.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}
