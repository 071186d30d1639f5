package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
	"github.com/nerrad567/powertag-monitor/internal/sampler"
	"github.com/nerrad567/powertag-monitor/internal/sink"
	"github.com/nerrad567/powertag-monitor/internal/snapshot"
)

type fakeState struct{ state sampler.State }

func (f fakeState) State() sampler.State { return f.state }

type fakeHistory struct {
	tag     string
	limit   int
	entries []sink.HistoryEntry
	alerts  []sink.AlertRecord
	err     error
}

func (f *fakeHistory) History(_ context.Context, tag string, limit int) ([]sink.HistoryEntry, error) {
	f.tag, f.limit = tag, limit
	return f.entries, f.err
}

func (f *fakeHistory) RecentAlerts(_ context.Context, tag string, limit int) ([]sink.AlertRecord, error) {
	f.tag, f.limit = tag, limit
	return f.alerts, f.err
}

var cycleTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRows() []powertag.Row {
	keys := []string{"voltage", "current", "model"}
	return []powertag.Row{
		{
			Tag: "Panel-A", Gateway: "gw1", DeviceID: 150, Timestamp: cycleTime, Keys: keys,
			Values: []powertag.Value{powertag.Float(231.5), powertag.Null(), powertag.Unknown()},
		},
		{
			Tag: "Panel-B", Gateway: "gw1", DeviceID: 151, Timestamp: cycleTime, Keys: keys,
			Values: []powertag.Value{powertag.Float(229), powertag.Float(0.5), powertag.Text("A9XM")},
		},
	}
}

func testServer(t *testing.T, deps Deps) (*Server, *snapshot.Store) {
	t.Helper()
	store := snapshot.New()
	deps.Logger = logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	deps.Snapshots = store
	deps.Version = "test"
	deps.WS = config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, store
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without snapshot source should fail")
	}
}

func TestLegacySnapshot(t *testing.T) {
	srv, store := testServer(t, Deps{})
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/powertags")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Errorf("before first cycle: %d %s", rec.Code, rec.Body.String())
	}

	store.Publish(cycleTime, testRows())
	rec = doRequest(t, h, http.MethodGet, "/api/powertags")

	var body map[string]struct {
		Tag    string         `json:"tag"`
		Values map[string]any `json:"values"`
	}
	decodeBody(t, rec, &body)
	if len(body) != 2 {
		t.Fatalf("got %d rows, want 2", len(body))
	}
	a := body["Panel-A"]
	if a.Values["voltage"] != 231.5 {
		t.Errorf("voltage = %v", a.Values["voltage"])
	}
	if v, ok := a.Values["current"]; !ok || v != nil {
		t.Errorf("current = %v (present %v), want null", v, ok)
	}
	if a.Values["model"] != "Unknown" {
		t.Errorf("model = %v, want Unknown", a.Values["model"])
	}
}

func TestListPowerTags(t *testing.T) {
	srv, store := testServer(t, Deps{})
	h := srv.Handler()

	var empty struct {
		Cycle     uint64          `json:"cycle"`
		Timestamp *string         `json:"timestamp"`
		RawRows   json.RawMessage `json:"rows"`
	}
	decodeBody(t, doRequest(t, h, http.MethodGet, "/api/v1/powertags"), &empty)
	if empty.Cycle != 0 || empty.Timestamp != nil || string(empty.RawRows) != "[]" {
		t.Errorf("empty view = cycle %d ts %v rows %s", empty.Cycle, empty.Timestamp, empty.RawRows)
	}

	store.Publish(cycleTime, testRows())
	var view struct {
		Cycle     uint64 `json:"cycle"`
		Timestamp string `json:"timestamp"`
		Count     int    `json:"count"`
		Rows      []struct {
			Tag string `json:"tag"`
		} `json:"rows"`
	}
	decodeBody(t, doRequest(t, h, http.MethodGet, "/api/v1/powertags"), &view)
	if view.Cycle != 1 || view.Count != 2 {
		t.Errorf("cycle=%d count=%d, want 1/2", view.Cycle, view.Count)
	}
	if view.Rows[0].Tag != "Panel-A" || view.Rows[1].Tag != "Panel-B" {
		t.Errorf("rows not in configuration order: %+v", view.Rows)
	}
	if view.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", view.Timestamp)
	}
}

func TestGetPowerTag(t *testing.T) {
	srv, store := testServer(t, Deps{})
	store.Publish(cycleTime, testRows())
	h := srv.Handler()

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"found", "/api/v1/powertags/Panel-B", http.StatusOK},
		{"missing", "/api/v1/powertags/Nope", http.StatusNotFound},
		{"too long", "/api/v1/powertags/" + strings.Repeat("x", maxQueryParamLen+1), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodGet, tt.path)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	var row struct {
		DeviceID int            `json:"device_id"`
		Values   map[string]any `json:"values"`
	}
	decodeBody(t, doRequest(t, h, http.MethodGet, "/api/v1/powertags/Panel-B"), &row)
	if row.DeviceID != 151 || row.Values["model"] != "A9XM" {
		t.Errorf("row = %+v", row)
	}
}

func TestHistory_Disabled(t *testing.T) {
	srv, _ := testServer(t, Deps{})
	h := srv.Handler()

	for _, path := range []string{"/api/v1/powertags/Panel-A/history", "/api/v1/alerts"} {
		rec := doRequest(t, h, http.MethodGet, path)
		var e Error
		decodeBody(t, rec, &e)
		if rec.Code != http.StatusNotFound || e.Code != ErrCodeHistoryDisabled {
			t.Errorf("%s: status=%d code=%q, want 404 history_disabled", path, rec.Code, e.Code)
		}
	}
}

func TestHistory_Enabled(t *testing.T) {
	hist := &fakeHistory{
		entries: []sink.HistoryEntry{{ID: 7, Row: testRows()[0]}},
	}
	srv, _ := testServer(t, Deps{History: hist})
	h := srv.Handler()

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "", http.StatusOK, 0},
		{"explicit limit", "?limit=10", http.StatusOK, 10},
		{"clamped limit", "?limit=5000", http.StatusOK, maxHistoryLimit},
		{"bad limit", "?limit=abc", http.StatusBadRequest, -1},
		{"zero limit", "?limit=0", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist.limit = -1
			rec := doRequest(t, h, http.MethodGet, "/api/v1/powertags/Panel-A/history"+tt.query)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if hist.limit != tt.wantLimit {
				t.Errorf("limit passed = %d, want %d", hist.limit, tt.wantLimit)
			}
		})
	}

	var body struct {
		Tag     string `json:"tag"`
		Count   int    `json:"count"`
		History []struct {
			ID  int64 `json:"id"`
			Row struct {
				Tag string `json:"tag"`
			} `json:"row"`
		} `json:"history"`
	}
	decodeBody(t, doRequest(t, h, http.MethodGet, "/api/v1/powertags/Panel-A/history"), &body)
	if body.Tag != "Panel-A" || body.Count != 1 || body.History[0].ID != 7 || body.History[0].Row.Tag != "Panel-A" {
		t.Errorf("body = %+v", body)
	}

	hist.err = errors.New("database locked")
	if rec := doRequest(t, h, http.MethodGet, "/api/v1/powertags/Panel-A/history"); rec.Code != http.StatusInternalServerError {
		t.Errorf("query failure status = %d, want 500", rec.Code)
	}
}

func TestListAlerts(t *testing.T) {
	hist := &fakeHistory{
		alerts: []sink.AlertRecord{{ID: "a1", Tag: "Panel-A", Title: "Alert: Panel-A", Severity: "critical", CreatedAt: cycleTime}},
	}
	srv, _ := testServer(t, Deps{History: hist})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/alerts?tag=Panel-A&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if hist.tag != "Panel-A" || hist.limit != 5 {
		t.Errorf("query tag=%q limit=%d", hist.tag, hist.limit)
	}
	var body struct {
		Count  int                `json:"count"`
		Alerts []sink.AlertRecord `json:"alerts"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 || body.Alerts[0].ID != "a1" {
		t.Errorf("body = %+v", body)
	}

	hist.alerts = nil
	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/alerts")
	if !strings.Contains(rec.Body.String(), `"alerts":[]`) {
		t.Errorf("empty alerts should encode as [], got %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		state      StateSource
		wantCode   int
		wantStatus string
		wantState  string
	}{
		{"running", fakeState{sampler.StateRunning}, http.StatusOK, "ok", "running"},
		{"failed", fakeState{sampler.StateFailed}, http.StatusServiceUnavailable, "failed", "failed"},
		{"no sampler", nil, http.StatusOK, "ok", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := testServer(t, Deps{State: tt.state})
			store.Publish(cycleTime, testRows())

			rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/health")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status  string `json:"status"`
				Sampler string `json:"sampler"`
				Cycle   uint64 `json:"cycle"`
				Version string `json:"version"`
			}
			decodeBody(t, rec, &body)
			if body.Status != tt.wantStatus || body.Sampler != tt.wantState || body.Cycle != 1 || body.Version != "test" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := testServer(t, Deps{})
	if rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without handler = %d, want 404", rec.Code)
	}

	metrics := sampler.NewMetrics()
	srv, _ = testServer(t, Deps{Metrics: metrics.Handler()})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "powertag_cycles_total") {
		t.Errorf("/metrics = %d", rec.Code)
	}
}

func TestMiddleware(t *testing.T) {
	srv, _ := testServer(t, Deps{Config: config.APIConfig{
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://dash.local"}},
	}})
	h := srv.Handler()

	t.Run("request id generated", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/powertags")
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
	})

	t.Run("request id echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/powertags", nil)
		req.Header.Set("X-Request-ID", "abc123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") != "abc123" {
			t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("cors allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/powertags", nil)
		req.Header.Set("Origin", "http://dash.local")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://dash.local" {
			t.Errorf("preflight = %d origin %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("cors other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/powertags", nil)
		req.Header.Set("Origin", "http://evil.local")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("disallowed origin should not get CORS headers")
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/powertags")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST status = %d, want 405", rec.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		var e Error
		rec := doRequest(t, h, http.MethodGet, "/api/v2/nothing")
		decodeBody(t, rec, &e)
		if rec.Code != http.StatusNotFound || e.Code != ErrCodeNotFound {
			t.Errorf("status=%d code=%q", rec.Code, e.Code)
		}
		if e.RequestID == "" || e.RequestID != rec.Header().Get("X-Request-ID") {
			t.Errorf("error request_id = %q, header %q", e.RequestID, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("oversized request id replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/powertags", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLen+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
			t.Errorf("X-Request-ID = %q, want a fresh UUID", got)
		}
	})
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"1", 1, false},
		{"200", 200, false},
		{"201", 200, false},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLimit(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLimit(%q) = %d, %v; want %d, err %v", tt.raw, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestServer_StartClose(t *testing.T) {
	srv, _ := testServer(t, Deps{Config: config.APIConfig{
		Host:     "127.0.0.1",
		Port:     0,
		Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
	}})

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestWebSocket_SnapshotPush(t *testing.T) {
	srv, store := testServer(t, Deps{})
	store.Publish(cycleTime, testRows())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close() //nolint:errcheck // Test cleanup

	first := readWSMessage(t, conn)
	if first.Type != WSTypeEvent || first.EventType != ChannelSnapshot {
		t.Fatalf("first message = %+v, want snapshot event", first)
	}
	payload, _ := first.Payload.(map[string]any)
	if payload["cycle"] != 1.0 {
		t.Errorf("initial snapshot cycle = %v, want 1", payload["cycle"])
	}

	srv.PublishSnapshot(store.Publish(cycleTime.Add(time.Minute), testRows()))
	next := readWSMessage(t, conn)
	payload, _ = next.Payload.(map[string]any)
	if next.EventType != ChannelSnapshot || payload["cycle"] != 2.0 {
		t.Errorf("pushed message = %+v", next)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	pong := readWSMessage(t, conn)
	if pong.Type != WSTypePong || pong.ID != "p1" {
		t.Errorf("pong = %+v", pong)
	}
}

func TestWebSocket_DeviceAndAlertChannels(t *testing.T) {
	srv, store := testServer(t, Deps{})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close() //nolint:errcheck // Test cleanup

	sub := WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{TagChannel("Panel-B")}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if ack := readWSMessage(t, conn); ack.Type != WSTypeResponse || ack.ID != "s1" {
		t.Fatalf("subscribe ack = %+v", ack)
	}

	srv.PublishSnapshot(store.Publish(cycleTime, testRows()))
	if msg := readWSMessage(t, conn); msg.EventType != ChannelSnapshot {
		t.Fatalf("first event = %q, want snapshot", msg.EventType)
	}
	row := readWSMessage(t, conn)
	payload, _ := row.Payload.(map[string]any)
	if row.EventType != "powertag.Panel-B" || payload["tag"] != "Panel-B" {
		t.Errorf("device event = %+v", row)
	}

	srv.PublishAlert(alert.Event{ID: "a1", Kind: alert.KindAlert, Tag: "Panel-A", Description: "HIGH VOLTAGE: 260.0V"})
	evt := readWSMessage(t, conn)
	payload, _ = evt.Payload.(map[string]any)
	if evt.EventType != ChannelAlert || payload["tag"] != "Panel-A" {
		t.Errorf("alert event = %+v", evt)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWSMessage(t, conn); msg.Type != WSTypeError || msg.ID != "x" {
		t.Errorf("unknown type reply = %+v", msg)
	}
}

func TestWSClient_Wants(t *testing.T) {
	c := &WSClient{subscriptions: map[string]struct{}{}}
	c.subscribe([]string{ChannelSnapshot, "powertag.*"})

	tests := []struct {
		channel string
		want    bool
	}{
		{ChannelSnapshot, true},
		{"powertag.Kitchen", true},
		{ChannelAlert, false},
		{"snapshot", false},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			if got := c.wants(tt.channel); got != tt.want {
				t.Errorf("wants(%q) = %v, want %v", tt.channel, got, tt.want)
			}
		})
	}

	c.unsubscribe([]string{"powertag.*"})
	if c.wants("powertag.Kitchen") {
		t.Error("wildcard should be gone after unsubscribe")
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelSnapshot: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"something.else": {}},
	}
	hub.Register(subscribed)
	hub.Register(other)

	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}

	hub.Broadcast(ChannelSnapshot, map[string]any{"cycle": 3})

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelSnapshot {
			t.Errorf("event_type = %q", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribed client did not receive broadcast")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}

	hub.Unregister(subscribed)
	hub.Unregister(subscribed)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() after unregister = %d, want 1", hub.ClientCount())
	}
}

func TestHub_DefaultsApplied(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, nil)
	if hub.cfg.PingInterval != defaultWSPingInterval || hub.cfg.PongTimeout != defaultWSPongTimeout || hub.cfg.MaxMessageSize != defaultWSMaxMessageSize {
		t.Errorf("cfg = %+v, want defaults", hub.cfg)
	}
}

func TestDashboardRoutes(t *testing.T) {
	srv, _ := testServer(t, Deps{})
	if rec := doRequest(t, srv.Handler(), http.MethodGet, "/dashboard/"); rec.Code != http.StatusNotFound {
		t.Errorf("/dashboard/ without handler = %d, want 404", rec.Code)
	}

	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page:" + r.URL.Path)) //nolint:errcheck // Test handler
	})
	srv, _ = testServer(t, Deps{Dashboard: page})
	h := srv.Handler()

	for _, path := range []string{"/", "/dashboard"} {
		rec := doRequest(t, h, http.MethodGet, path)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard/" {
			t.Errorf("GET %s = %d -> %q, want redirect to /dashboard/", path, rec.Code, rec.Header().Get("Location"))
		}
	}

	rec := doRequest(t, h, http.MethodGet, "/dashboard/app.js")
	if rec.Body.String() != "page:/app.js" {
		t.Errorf("dashboard asset body = %q", rec.Body.String())
	}
}
