package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

type fakePublisher struct {
	topic    string
	payload  []byte
	retained bool
	err      error
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	if f.err != nil {
		return f.err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.topic, f.payload, f.retained = topic, payload, retained
	return nil
}

func TestMQTTNotifier(t *testing.T) {
	tests := []struct {
		name      string
		evt       alert.Event
		wantTopic string
	}{
		{"alert", alertEvent(), "powertag/alert/Panel-A"},
		{"startup", alert.Event{Kind: alert.KindStartup}, "powertag/event/startup"},
		{"untyped with tag", alert.Event{Tag: "Panel-B"}, "powertag/alert/Panel-B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			if err := NewMQTTNotifier(pub).Notify(context.Background(), tt.evt); err != nil {
				t.Fatalf("Notify() error = %v", err)
			}
			if pub.topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", pub.topic, tt.wantTopic)
			}
			if pub.retained {
				t.Error("events must not be retained")
			}
			var got alert.Event
			if err := json.Unmarshal(pub.payload, &got); err != nil {
				t.Fatalf("payload is not an event: %v", err)
			}
			if got.ID != tt.evt.ID || got.Title != tt.evt.Title {
				t.Errorf("payload = %+v", got)
			}
		})
	}
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	err := NewMQTTNotifier(pub).Notify(context.Background(), alertEvent())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("Notify() error = %v, want ErrDeliveryFailed", err)
	}
}

// startTestNATS runs an embedded NATS server on a random port.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestConnectNATS_Disabled(t *testing.T) {
	n, err := ConnectNATS(config.NATSConfig{Enabled: false})
	if n != nil || !errors.Is(err, ErrDisabled) {
		t.Errorf("ConnectNATS() = %v, %v; want nil, ErrDisabled", n, err)
	}
}

func TestNATSNotifier_Publish(t *testing.T) {
	url := startTestNATS(t)

	n, err := ConnectNATS(config.NATSConfig{Enabled: true, URL: url, SubjectPrefix: "site1"})
	if err != nil {
		t.Fatalf("ConnectNATS() error = %v", err)
	}
	defer n.Close() //nolint:errcheck // Test cleanup

	if err := n.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer sub.Close()

	ch := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("site1.alert.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer s.Unsubscribe() //nolint:errcheck // Test cleanup
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := n.Notify(context.Background(), alertEvent()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != "site1.alert.Panel-A" {
			t.Errorf("subject = %q", msg.Subject)
		}
		var got alert.Event
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ID != "evt-1" || got.Description != alertEvent().Description {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestNATSNotifier_Subject(t *testing.T) {
	n := NewNATSNotifier(nil, "")
	tests := []struct {
		evt  alert.Event
		want string
	}{
		{alert.Event{Kind: alert.KindAlert, Tag: "Panel-A"}, "powertag.alert.Panel-A"},
		{alert.Event{Kind: alert.KindAlert, Tag: "bay 3.left"}, "powertag.alert.bay_3_left"},
		{alert.Event{Kind: alert.KindAlert, Tag: "*>"}, "powertag.alert.__"},
		{alert.Event{Kind: alert.KindShutdown}, "powertag.event.shutdown"},
		{alert.Event{}, "powertag.event._"},
	}

	for _, tt := range tests {
		if got := n.Subject(tt.evt); got != tt.want {
			t.Errorf("Subject(%+v) = %q, want %q", tt.evt, got, tt.want)
		}
	}
}
