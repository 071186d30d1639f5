package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/alert"
)

// Embed colours.
const (
	ColorDefault  = 3447003
	ColorSuccess  = 3066993
	ColorError    = 15158332
	ColorShutdown = 10181046
)

const (
	defaultWebhookTimeout  = 10 * time.Second
	defaultWebhookUsername = "PowerTag Monitor"

	startupContent = "**PowerTag Monitor initializing...**"
)

// Webhook posts events as Discord-compatible embeds.
type Webhook struct {
	url      string
	username string
	client   *http.Client
}

// NewWebhook creates a webhook notifier. An empty username uses
// "PowerTag Monitor"; a non-positive timeout uses 10s.
func NewWebhook(url, username string, timeout time.Duration) *Webhook {
	if username == "" {
		username = defaultWebhookUsername
	}
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		url:      url,
		username: username,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notify implements Notifier. Any non-2xx response is a delivery failure.
func (w *Webhook) Notify(ctx context.Context, evt alert.Event) error {
	body, err := json.Marshal(buildPayload(w.username, evt))
	if err != nil {
		return fmt.Errorf("%w: encoding embed: %w", ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: webhook returned HTTP %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

func buildPayload(username string, evt alert.Event) webhookPayload {
	e := embed{
		Title:       evt.Title,
		Description: evt.Description,
		Color:       embedColor(evt),
		Timestamp:   evt.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, f := range evt.Fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value})
	}

	p := webhookPayload{Username: username, Embeds: []embed{e}}
	if evt.Kind == alert.KindStartup {
		p.Content = startupContent
	}
	return p
}

func embedColor(evt alert.Event) int {
	switch {
	case evt.Kind == alert.KindShutdown:
		return ColorShutdown
	case evt.Severity == alert.SeverityCritical:
		return ColorError
	case evt.Kind == alert.KindStartup:
		return ColorSuccess
	default:
		return ColorDefault
	}
}
