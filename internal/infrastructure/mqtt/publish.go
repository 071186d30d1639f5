package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps a single message. A PowerTag row is a few hundred
// bytes, so anything near this is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to acknowledge
// it (for QoS 1 and 2).
//
// Parameters:
//   - topic: Concrete topic, e.g. Topics{}.Alert("Panel-A"); wildcards are rejected
//   - payload: Message body, at most 1 MiB
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps it for later subscribers
//
// Returns:
//   - error: ErrInvalidPublish, ErrNotConnected or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkPublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := wait(c.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// PublishDefault publishes with the configured QoS. State topics are
// retained so a new subscriber sees the latest row; events are not.
func (c *Client) PublishDefault(topic string, payload []byte, retained bool) error {
	return c.Publish(topic, payload, c.QoS(), retained)
}

// PublishJSON marshals v and publishes it with the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload for %s: %w", ErrInvalidPublish, topic, err)
	}
	return c.PublishDefault(topic, payload, retained)
}

// QoS returns mqtt.qos clamped to 0..2.
func (c *Client) QoS() byte {
	return byte(min(max(c.cfg.QoS, 0), maxQoS)) //nolint:gosec // Clamped to 0..2
}

func checkPublish(topic string, payload []byte, qos byte) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty topic", ErrInvalidPublish)
	case strings.ContainsAny(topic, "+#"):
		return fmt.Errorf("%w: wildcard in topic %q", ErrInvalidPublish, topic)
	case qos > maxQoS:
		return fmt.Errorf("%w: qos %d", ErrInvalidPublish, qos)
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidPublish, len(payload), maxPayloadSize)
	}
	return nil
}

// wait blocks for token up to the publish timeout.
func wait(token pahomqtt.Token) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("no acknowledgement within %v", defaultPublishTimeout)
	}
	return token.Error()
}
