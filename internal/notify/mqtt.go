package notify

import (
	"context"
	"fmt"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/mqtt"
)

// Publisher is the part of mqtt.Client the MQTT notifier needs.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTNotifier publishes events as JSON. Alerts go to
// powertag/alert/<tag>, service events to powertag/event/<kind>. Nothing
// is retained.
type MQTTNotifier struct {
	pub Publisher
}

// NewMQTTNotifier wraps a connected publisher.
func NewMQTTNotifier(pub Publisher) *MQTTNotifier {
	return &MQTTNotifier{pub: pub}
}

// Name implements Notifier.
func (n *MQTTNotifier) Name() string { return "mqtt" }

// Notify implements Notifier.
func (n *MQTTNotifier) Notify(_ context.Context, evt alert.Event) error {
	if err := n.pub.PublishJSON(mqttTopic(evt), evt, false); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func mqttTopic(evt alert.Event) string {
	if evt.Kind == alert.KindAlert || (evt.Kind == "" && evt.Tag != "") {
		return mqtt.Topics{}.Alert(evt.Tag)
	}
	return mqtt.Topics{}.Event(evt.Kind)
}
