package modbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	gomodbus "github.com/simonvetter/modbus"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
	"github.com/nerrad567/powertag-monitor/internal/register"
)

// Default values for the gateway session.
const (
	defaultTimeout = 5 * time.Second
	defaultRTUBaud = 19200
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// transport is the subset of *gomodbus.ModbusClient used by Client.
type transport interface {
	Open() error
	Close() error
	SetUnitId(id uint8) error
	ReadRegisters(addr uint16, quantity uint16, regType gomodbus.RegType) ([]uint16, error)
}

// Options configures how a gateway session is opened.
type Options struct {
	// Mode is "tcp" or "rtu".
	Mode string
	// Timeout bounds each request.
	Timeout time.Duration
	// Speed is the serial baud rate in RTU mode.
	Speed uint
}

// OptionsFromConfig builds Options from the modbus config section.
func OptionsFromConfig(cfg config.ModbusConfig) Options {
	return Options{
		Mode:    cfg.Mode,
		Timeout: time.Duration(cfg.Timeout) * time.Second,
		Speed:   uint(cfg.RTUBaud), //nolint:gosec // Baud rate is a small positive integer
	}
}

// Client is one long-lived session with a Modbus gateway. Many PowerTags
// share a gateway, so the unit id is switched per request.
//
// Thread Safety:
//   - All methods are safe for concurrent use; requests are serialised.
type Client struct {
	gateway powertag.Gateway
	opts    Options

	mu        sync.Mutex
	conn      transport
	connected bool
	// reopen is set after a transport-level failure; the next read
	// reconnects before issuing its request.
	reopen bool

	dial func(*gomodbus.ClientConfiguration) (transport, error)

	logger   Logger
	loggerMu sync.RWMutex
}

// NewClient creates an unopened session for gw.
func NewClient(gw powertag.Gateway, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Speed == 0 {
		opts.Speed = defaultRTUBaud
	}
	return &Client{
		gateway: gw,
		opts:    opts,
		dial: func(cfg *gomodbus.ClientConfiguration) (transport, error) {
			return gomodbus.NewClient(cfg)
		},
	}
}

// Name returns the gateway name.
func (c *Client) Name() string {
	return c.gateway.Name
}

// URL returns the connection URL for the gateway.
// IPv6 hosts (including link-local with zone) are bracketed.
func (c *Client) URL() string {
	if c.opts.Mode == config.ModeRTU {
		return "rtu://" + c.gateway.Device
	}
	return "tcp://" + net.JoinHostPort(c.gateway.Host, strconv.Itoa(c.gateway.Port))
}

// Open connects to the gateway.
//
// Returns:
//   - error: wrapped ErrConnectionFailed if the gateway is unreachable
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *Client) openLocked() error {
	conn, err := c.dial(&gomodbus.ClientConfiguration{
		URL:     c.URL(),
		Timeout: c.opts.Timeout,
		Speed:   c.opts.Speed,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.gateway.Name, err)
	}
	if err := conn.Open(); err != nil {
		return fmt.Errorf("%w: %s (%s): %w", ErrConnectionFailed, c.gateway.Name, c.URL(), err)
	}

	c.conn = conn
	c.connected = true
	c.reopen = false

	if logger := c.getLogger(); logger != nil {
		logger.Info("connected to modbus gateway", "gateway", c.gateway.Name, "url", c.URL())
	}
	return nil
}

// ReadWords reads count registers starting at address from the device
// with the given unit id.
func (c *Client) ReadWords(region register.Region, address uint16, deviceID uint8, count uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, ErrNotConnected
	}

	if c.reopen {
		_ = c.conn.Close() //nolint:errcheck // Best effort before reconnect
		if err := c.openLocked(); err != nil {
			return nil, err
		}
	}

	if err := c.conn.SetUnitId(deviceID); err != nil {
		return nil, fmt.Errorf("%w: %d: %w", ErrInvalidUnitID, deviceID, err)
	}

	regType := gomodbus.INPUT_REGISTER
	if region == register.RegionHolding {
		regType = gomodbus.HOLDING_REGISTER
	}

	words, err := c.conn.ReadRegisters(address, count, regType)
	if err != nil {
		if isTransportError(err) {
			c.reopen = true
			if logger := c.getLogger(); logger != nil {
				logger.Warn("modbus transport error, will reconnect",
					"gateway", c.gateway.Name,
					"error", err,
				)
			}
		}
		return nil, fmt.Errorf("%w: %s unit %d %s@%d: %w", ErrReadFailed, c.gateway.Name, deviceID, region, address, err)
	}
	return words, nil
}

// Close disconnects from the gateway. Closing a closed session is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("closing gateway %s: %w", c.gateway.Name, err)
	}
	return nil
}

// HealthCheck reports whether the session is open.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("modbus health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SetLogger sets a logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// isTransportError reports whether err means the connection itself is
// broken, as opposed to a timeout or a device exception.
func isTransportError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return false
}
