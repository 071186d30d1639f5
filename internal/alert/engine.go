package alert

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

// Severity levels carried by events. Notifiers map them to colours.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Thresholds are the operator alert limits. Boundaries are exclusive.
type Thresholds struct {
	VoltageLow  float64
	VoltageHigh float64
	CurrentHigh float64
}

// Event kinds. KindAlert events come from Process; the rest describe the
// service itself.
const (
	KindAlert    = "alert"
	KindStartup  = "startup"
	KindShutdown = "shutdown"
	KindError    = "error"
)

// Field is a name/value pair attached to an event.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event is one notification ready to dispatch.
type Event struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Tag         string    `json:"tag,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Fields      []Field   `json:"fields,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Options configures an Engine.
type Options struct {
	Thresholds Thresholds
	Cooldown   time.Duration
	// VoltageKey and CurrentKey name the registers to check.
	VoltageKey string
	CurrentKey string
}

// OptionsFromConfig builds Options from the alerts config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Thresholds: Thresholds{
			VoltageLow:  cfg.Alerts.Thresholds.Voltage.Low,
			VoltageHigh: cfg.Alerts.Thresholds.Voltage.High,
			CurrentHigh: cfg.Alerts.Thresholds.Current.High,
		},
		Cooldown:   cfg.GetAlertCooldown(),
		VoltageKey: cfg.Alerts.VoltageRegister,
		CurrentKey: cfg.Alerts.CurrentRegister,
	}
}

// Engine evaluates rows against thresholds and rate-limits notifications
// per device.
//
// Thread Safety:
//   - Not safe for concurrent use. The sampler goroutine owns the engine
//     and its cooldown table.
type Engine struct {
	opts      Options
	lastAlert map[string]time.Time
	newID     func() string
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.VoltageKey == "" {
		opts.VoltageKey = "voltage"
	}
	if opts.CurrentKey == "" {
		opts.CurrentKey = "current"
	}
	return &Engine{
		opts:      opts,
		lastAlert: make(map[string]time.Time),
		newID:     uuid.NewString,
	}
}

// Evaluate returns the alert messages for row, voltage first. Only present
// numeric values are checked; zero is a present value.
func (e *Engine) Evaluate(row powertag.Row) []string {
	var msgs []string
	th := e.opts.Thresholds

	if v, ok := row.Get(e.opts.VoltageKey).Float64(); ok {
		switch {
		case v > th.VoltageHigh:
			msgs = append(msgs, "HIGH VOLTAGE: "+powertag.FormatNumber(v)+"V")
		case v < th.VoltageLow:
			msgs = append(msgs, "LOW VOLTAGE: "+powertag.FormatNumber(v)+"V")
		}
	}

	if a, ok := row.Get(e.opts.CurrentKey).Float64(); ok && a > th.CurrentHigh {
		msgs = append(msgs, "HIGH CURRENT: "+powertag.FormatNumber(a)+"A")
	}

	return msgs
}

// Process evaluates row and applies the cooldown. It returns an event when
// the row breaches a threshold and the device has not alerted within the
// cooldown window (strictly greater than). The cooldown timestamp advances
// only when an event is returned.
func (e *Engine) Process(row powertag.Row) (Event, bool) {
	msgs := e.Evaluate(row)
	if len(msgs) == 0 {
		return Event{}, false
	}

	if last, ok := e.lastAlert[row.Tag]; ok && row.Timestamp.Sub(last) <= e.opts.Cooldown {
		return Event{}, false
	}
	e.lastAlert[row.Tag] = row.Timestamp

	return Event{
		ID:          e.newID(),
		Kind:        KindAlert,
		Tag:         row.Tag,
		Title:       "Alert: " + row.Tag,
		Description: strings.Join(msgs, "\n"),
		Severity:    SeverityCritical,
		Fields: []Field{{
			Name:  "Status",
			Value: "V: " + statusValue(row.Get(e.opts.VoltageKey)) + "V, A: " + statusValue(row.Get(e.opts.CurrentKey)) + "A",
		}},
		Timestamp: row.Timestamp,
	}, true
}

// LastAlert returns when tag last produced an event.
func (e *Engine) LastAlert(tag string) (time.Time, bool) {
	t, ok := e.lastAlert[tag]
	return t, ok
}

// StatusEvent builds a non-alert event such as a startup or shutdown notice.
func StatusEvent(kind, title, description, severity string, fields ...Field) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Title:       title,
		Description: description,
		Severity:    severity,
		Fields:      fields,
		Timestamp:   time.Now().UTC(),
	}
}

// StartupEvent announces the monitor with its configured thresholds.
func StartupEvent(th Thresholds, devices int) Event {
	return StatusEvent(
		KindStartup,
		"PowerTag Monitor Initialized",
		"Monitoring started successfully",
		SeverityInfo,
		Field{Name: "Devices", Value: strconv.Itoa(devices)},
		Field{Name: "Voltage Range", Value: powertag.FormatNumber(th.VoltageLow) + "V - " + powertag.FormatNumber(th.VoltageHigh) + "V"},
		Field{Name: "Current Threshold", Value: powertag.FormatNumber(th.CurrentHigh) + "A"},
	)
}

// ShutdownEvent announces a clean stop.
func ShutdownEvent() Event {
	return StatusEvent(KindShutdown, "PowerTag Monitor Stopped", "Monitoring stopped", SeverityWarning,
		Field{Name: "Time", Value: time.Now().Format(time.TimeOnly)})
}

// ErrorEvent reports the failure that stopped the sampling loop.
func ErrorEvent(err error) Event {
	return StatusEvent(KindError, "PowerTag Monitor Error", err.Error(), SeverityCritical,
		Field{Name: "Time", Value: time.Now().Format(time.TimeOnly)})
}

// statusValue renders a reading for the Status field; null shows as n/a.
func statusValue(v powertag.Value) string {
	if v.IsNull() {
		return "n/a"
	}
	return v.String()
}
