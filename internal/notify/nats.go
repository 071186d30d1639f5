package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

const (
	defaultSubjectPrefix = "powertag"
	natsReconnectWait    = time.Second
	natsClientName       = "powertag-monitor"
)

// NATSNotifier publishes events as JSON on <prefix>.alert.<tag> and
// <prefix>.event.<kind>.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// ConnectNATS dials the server in cfg. The connection reconnects forever;
// publishes made while disconnected are buffered by the client library.
//
// Returns:
//   - *NATSNotifier: ready to use
//   - error: ErrDisabled, or the dial error
func ConnectNATS(cfg config.NATSConfig, opts ...nats.Option) (*NATSNotifier, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	defaults := []nats.Option{
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
	}
	nc, err := nats.Connect(cfg.URL, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	return NewNATSNotifier(nc, cfg.SubjectPrefix), nil
}

// NewNATSNotifier wraps an existing connection.
func NewNATSNotifier(nc *nats.Conn, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSNotifier{conn: nc, prefix: prefix}
}

// Name implements Notifier.
func (n *NATSNotifier) Name() string { return "nats" }

// Notify implements Notifier.
func (n *NATSNotifier) Notify(_ context.Context, evt alert.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrDeliveryFailed, err)
	}
	if err := n.conn.Publish(n.Subject(evt), data); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// Subject returns the subject evt is published on.
func (n *NATSNotifier) Subject(evt alert.Event) string {
	if evt.Kind == alert.KindAlert || (evt.Kind == "" && evt.Tag != "") {
		return n.prefix + ".alert." + subjectToken(evt.Tag)
	}
	return n.prefix + ".event." + subjectToken(evt.Kind)
}

// HealthCheck reports whether the connection is up.
func (n *NATSNotifier) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("nats health check: %w", ctx.Err())
	default:
	}
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats health check: status %s", n.conn.Status())
	}
	return nil
}

// Close flushes buffered publishes and closes the connection.
func (n *NATSNotifier) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	_ = n.conn.FlushTimeout(natsReconnectWait) //nolint:errcheck // Best effort before close
	n.conn.Close()
	return nil
}

// subjectToken makes a name usable as one subject token: separators,
// wildcards and whitespace become underscores.
func subjectToken(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, name)
}
