package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

// pahoClient is the subset of pahomqtt.Client used here.
type pahoClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Logger is satisfied by logging.Logger and *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client publishes PowerTag state, alerts and service status to a broker.
//
// paho owns reconnection. While it is reconnecting, Publish fails fast
// with ErrNotConnected rather than queueing, since every state topic is
// overwritten on the next cycle anyway.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	client   pahoClient
	cfg      config.MQTTConfig
	clientID string

	// up tracks paho's connect/lost callbacks. IsConnected also asks paho.
	up atomic.Bool

	mu           sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Connect dials the broker and waits for the first connection.
//
// The will message marks the service offline on powertag/system/status
// if it vanishes. A retained online status is published on connect and
// on every reconnect.
//
// Parameters:
//   - cfg: mqtt section of the configuration
//
// Returns:
//   - *Client: Connected client
//   - error: ErrDisabled, or ErrConnectionFailed when the broker is unreachable
func Connect(cfg config.MQTTConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	c := &Client{cfg: cfg, clientID: cfg.Broker.ClientID}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	pc := pahomqtt.NewClient(opts)
	c.client = pc

	token := pc.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		pc.Disconnect(0)
		return nil, fmt.Errorf("%w: no answer from %s within %v", ErrConnectionFailed, brokerURL(cfg), defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg), err)
	}

	// The connect handler runs on a paho goroutine and may still be pending.
	c.up.Store(true)
	return c, nil
}

// handleConnect runs on the first connection and every reconnect.
func (c *Client) handleConnect() {
	c.up.Store(true)

	// Fire and forget: waiting here would block paho's own goroutine.
	c.client.Publish(Topics{}.SystemStatus(), c.QoS(), true, buildOnlinePayload(c.clientID))

	c.mu.RLock()
	fn := c.onConnect
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.up.Store(false)

	c.mu.RLock()
	fn := c.onDisconnect
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close marks the service offline and disconnects. Calling it on a nil or
// already closed client is a no-op.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), c.QoS(), true, buildOfflinePayload(c.clientID))
		if err := wait(token); err != nil {
			c.warn("offline status not published", err)
		}
	}

	c.up.Store(false)
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// HealthCheck fails when the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether publishes can currently reach the broker.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.up.Load() && c.client.IsConnected()
}

// SetOnConnect registers a callback for connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for a lost connection.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets where status publish failures are reported.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) warn(msg string, err error) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	if logger != nil {
		logger.Warn(msg, "client_id", c.clientID, "error", err)
	}
}

// statusTime is replaced in tests.
var statusTime = func() string {
	return time.Now().UTC().Format(time.RFC3339)
}
