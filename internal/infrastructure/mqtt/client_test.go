package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

// fakeToken is a completed (or never-completing) paho token.
type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakePaho records publishes.
type fakePaho struct {
	mu           sync.Mutex
	connected    bool
	messages     []published
	token        *fakeToken
	disconnected bool
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	f.messages = append(f.messages, published{topic, qos, retained, body})
	if f.token != nil {
		return f.token
	}
	return &fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakePaho) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "powertag-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func newTestClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	fake := &fakePaho{connected: true}
	c := &Client{client: fake, cfg: testConfig(), clientID: "powertag-test"}
	c.up.Store(true)
	return c, fake
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := Connect(cfg)
	if client != nil {
		t.Error("Connect() should return nil client when disabled")
	}
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestPublish(t *testing.T) {
	c, fake := newTestClient(t)

	if err := c.Publish("powertag/alert/Panel-A", []byte(`{"id":"1"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := fake.sent()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	got := msgs[0]
	if got.topic != "powertag/alert/Panel-A" || got.qos != 1 || got.retained || got.payload != `{"id":"1"}` {
		t.Errorf("published %+v", got)
	}
}

func TestPublish_Validation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidPublish},
		{"wildcard topic", "powertag/state/+", []byte("x"), 1, ErrInvalidPublish},
		{"invalid qos", "powertag/x", []byte("x"), 3, ErrInvalidPublish},
		{"payload too large", "powertag/x", make([]byte, maxPayloadSize+1), 1, ErrInvalidPublish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
			if len(fake.sent()) != 0 {
				t.Error("invalid publish reached the broker")
			}
		})
	}
}

func TestPublish_Disconnected(t *testing.T) {
	c, fake := newTestClient(t)
	fake.connected = false

	if err := c.Publish("powertag/x", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublish_TokenFailures(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
	}{
		{"timeout", &fakeToken{pending: true}},
		{"broker error", &fakeToken{err: errors.New("not authorised")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			fake.token = tt.token
			if err := c.Publish("powertag/x", []byte("x"), 1, false); !errors.Is(err, ErrPublishFailed) {
				t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
			}
		})
	}
}

func TestPublishDefault_UsesConfiguredQoS(t *testing.T) {
	c, fake := newTestClient(t)
	c.cfg.QoS = 2

	if err := c.PublishDefault(Topics{}.State("Panel-A"), []byte("{}"), true); err != nil {
		t.Fatalf("PublishDefault() error = %v", err)
	}
	got := fake.sent()[0]
	if got.qos != 2 || !got.retained {
		t.Errorf("qos=%d retained=%v, want 2/true", got.qos, got.retained)
	}
}

func TestPublishJSON(t *testing.T) {
	c, fake := newTestClient(t)

	if err := c.PublishJSON(Topics{}.State("Panel-A"), map[string]float64{"voltage": 231.5}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	got := fake.sent()[0]
	if got.payload != `{"voltage":231.5}` || got.qos != 1 || !got.retained {
		t.Errorf("published %+v", got)
	}

	if err := c.PublishJSON("powertag/x", make(chan int), false); !errors.Is(err, ErrInvalidPublish) {
		t.Errorf("PublishJSON(chan) error = %v, want ErrInvalidPublish", err)
	}
}

func TestQoS_Clamped(t *testing.T) {
	tests := []struct {
		cfg  int
		want byte
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{5, 2},
	}
	for _, tt := range tests {
		c := &Client{cfg: config.MQTTConfig{QoS: tt.cfg}}
		if got := c.QoS(); got != tt.want {
			t.Errorf("QoS() with cfg %d = %d, want %d", tt.cfg, got, tt.want)
		}
	}
}

func TestClose_PublishesOfflineStatus(t *testing.T) {
	c, fake := newTestClient(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fake.disconnected {
		t.Error("Close() did not disconnect")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	msgs := fake.sent()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].topic != "powertag/system/status" || !msgs[0].retained {
		t.Errorf("status message = %+v", msgs[0])
	}
	if !strings.Contains(msgs[0].payload, `"reason":"graceful_shutdown"`) {
		t.Errorf("payload = %s", msgs[0].payload)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c, fake := newTestClient(t)
	c.up.Store(false)

	connected := make(chan struct{}, 1)
	lost := make(chan error, 1)
	c.SetOnConnect(func() { connected <- struct{}{} })
	c.SetOnDisconnect(func(err error) { lost <- err })

	c.handleConnect()
	select {
	case <-connected:
	default:
		t.Fatal("onConnect not invoked")
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after handleConnect")
	}
	msgs := fake.sent()
	if len(msgs) != 1 || !strings.Contains(msgs[0].payload, `"status":"online"`) {
		t.Errorf("online status not published: %+v", msgs)
	}

	c.handleDisconnect(errors.New("broker gone"))
	select {
	case err := <-lost:
		if err == nil || err.Error() != "broker gone" {
			t.Errorf("onDisconnect error = %v", err)
		}
	default:
		t.Fatal("onDisconnect not invoked")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after handleDisconnect")
	}
}

func TestHealthCheck(t *testing.T) {
	c, fake := newTestClient(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}

	fake.connected = false
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"State", topics.State("Panel-A"), "powertag/state/Panel-A"},
		{"Alert", topics.Alert("Panel-A"), "powertag/alert/Panel-A"},
		{"Alert sanitised", topics.Alert("a/b+#"), "powertag/alert/a_b__"},
		{"Alert empty", topics.Alert(""), "powertag/alert/_"},
		{"Event", topics.Event("startup"), "powertag/event/startup"},
		{"SystemStatus", topics.SystemStatus(), "powertag/system/status"},
		{"AllStates", topics.AllStates(), "powertag/state/+"},
		{"AllAlerts", topics.AllAlerts(), "powertag/alert/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		host string
		tls  bool
		want string
	}{
		{"localhost", false, "tcp://localhost:1883"},
		{"broker.local", true, "ssl://broker.local:1883"},
		{"fe80::1", false, "tcp://[fe80::1]:1883"},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.Broker.Host = tt.host
		cfg.Broker.TLS = tt.tls
		if got := brokerURL(cfg); got != tt.want {
			t.Errorf("brokerURL(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	orig := statusTime
	statusTime = func() string { return "2026-03-01T12:00:00Z" }
	defer func() { statusTime = orig }()

	var got statusPayload
	if err := json.Unmarshal([]byte(buildOfflinePayload(`id"quoted`)), &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	want := statusPayload{
		Status:    "offline",
		ClientID:  `id"quoted`,
		Reason:    "graceful_shutdown",
		Timestamp: "2026-03-01T12:00:00Z",
	}
	if got != want {
		t.Errorf("payload = %+v, want %+v", got, want)
	}

	if strings.Contains(buildOnlinePayload("x"), "reason") {
		t.Error("online payload should omit reason")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "powertag", Password: "secret"}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "powertag-test" || opts.Username != "powertag" || opts.Password != "secret" {
		t.Errorf("identity = %q/%q/%q", opts.ClientID, opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.WillTopic != "powertag/system/status" || !opts.WillRetained || opts.WillQos != willQoS {
		t.Errorf("will = %q retained=%v qos=%d", opts.WillTopic, opts.WillRetained, opts.WillQos)
	}
	if !strings.Contains(string(opts.WillPayload), reasonUnexpected) {
		t.Errorf("will payload = %s", opts.WillPayload)
	}
}
