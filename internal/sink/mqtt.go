package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

// StatePublisher is the part of mqtt.Client MQTTSink needs.
type StatePublisher interface {
	PublishDefault(topic string, payload []byte, retained bool) error
}

// MQTTSink publishes each row, retained, on powertag/state/<tag> so
// subscribers always see a device's latest reading.
//
// Publish failures are logged through onError and never stop sampling:
// the broker is a live view, not the durable log.
type MQTTSink struct {
	pub     StatePublisher
	onError func(error)
}

// NewMQTTSink wraps a connected publisher. onError may be nil.
func NewMQTTSink(pub StatePublisher, onError func(error)) *MQTTSink {
	return &MQTTSink{pub: pub, onError: onError}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Append implements Sink.
func (s *MQTTSink) Append(_ context.Context, row powertag.Row) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshalling row: %w", err)
	}
	if err := s.pub.PublishDefault(mqtt.Topics{}.State(row.Tag), payload, true); err != nil && s.onError != nil {
		s.onError(err)
	}
	return nil
}

// Close implements Sink. The MQTT client is owned by the caller.
func (s *MQTTSink) Close() error { return nil }
