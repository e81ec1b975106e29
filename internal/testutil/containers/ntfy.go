//go:build integration

package containers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NtfyContainer runs an ntfy server, a shoutrrr target that can be polled
// for delivered messages.
type NtfyContainer struct {
	container testcontainers.Container
	host      string
	port      int
}

// NtfyMessage is one message read back from a topic.
type NtfyMessage struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	Message  string `json:"message"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
}

// NewNtfyContainer starts binwiederhier/ntfy with the message cache enabled.
// An empty tag uses "latest".
func NewNtfyContainer(ctx context.Context, tag string) (*NtfyContainer, error) {
	if tag == "" {
		tag = "latest"
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "binwiederhier/ntfy:" + tag,
			ExposedPorts: []string{"80/tcp"},
			Cmd:          []string{"serve", "--cache-file=/tmp/ntfy/cache.db"},
			Tmpfs:        map[string]string{"/tmp/ntfy": "rw"},
			WaitingFor:   wait.ForHTTP("/v1/health").WithPort("80/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ntfy container: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get ntfy host: %w", err)
	}
	port, err := ctr.MappedPort(ctx, "80")
	if err != nil {
		_ = ctr.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get ntfy port: %w", err)
	}
	return &NtfyContainer{container: ctr, host: host, port: port.Int()}, nil
}

// Host returns host:port of the server.
func (c *NtfyContainer) Host() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// ShoutrrrURL returns the shoutrrr service URL publishing to topic.
func (c *NtfyContainer) ShoutrrrURL(topic string) string {
	return fmt.Sprintf("ntfy://%s/%s?scheme=http", c.Host(), topic)
}

// PollMessages returns the cached messages of topic.
func (c *NtfyContainer) PollMessages(ctx context.Context, topic string) ([]NtfyMessage, error) {
	url := fmt.Sprintf("http://%s/%s/json?poll=1", c.Host(), topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll %s: %w", topic, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned %d: %s", resp.StatusCode, body)
	}

	// newline delimited JSON
	var messages []NtfyMessage
	for line := range strings.SplitSeq(strings.TrimSpace(string(body)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var msg NtfyMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("failed to parse ntfy message: %w", err)
		}
		if msg.ID == "" && msg.Message == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Terminate stops and removes the container.
func (c *NtfyContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}
