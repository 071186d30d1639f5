package sampler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// metricValue returns the counter or gauge value of the series matching
// labels, or 0 when absent.
func metricValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

type fakeStats struct{ delivered, failed, dropped uint64 }

func (f fakeStats) Delivered() uint64 { return f.delivered }
func (f fakeStats) Failed() uint64 { return f.failed }
func (f fakeStats) Dropped() uint64 { return f.dropped }

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics()
	m.ReadFailed("gw1", "voltage")
	m.ReadFailed("gw1", "voltage")
	m.ReadExhausted("gw1", "voltage")

	if got := metricValue(t, m, "powertag_register_read_failures_total", map[string]string{"gateway": "gw1", "register": "voltage"}); got != 2 {
		t.Errorf("read failures = %v, want 2", got)
	}
	if got := metricValue(t, m, "powertag_register_reads_exhausted_total", map[string]string{"register": "voltage"}); got != 1 {
		t.Errorf("exhausted = %v, want 1", got)
	}
}

func TestMetrics_StateGauge(t *testing.T) {
	m := NewMetrics()
	m.setState(StateRunning)
	if got := metricValue(t, m, "powertag_scheduler_state", nil); got != float64(StateRunning) {
		t.Errorf("scheduler_state = %v, want %d", got, StateRunning)
	}
}

func TestMetrics_DispatcherCounters(t *testing.T) {
	m := NewMetrics()
	m.RegisterDispatcher(fakeStats{delivered: 5, failed: 2, dropped: 1})

	tests := map[string]float64{
		"powertag_notifications_delivered_total": 5,
		"powertag_notifications_failed_total":    2,
		"powertag_notifications_dropped_total":   1,
	}
	for name, want := range tests {
		if got := metricValue(t, m, name, nil); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.overrun()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "powertag_cycle_overruns_total 1") {
		t.Errorf("metrics output missing overrun counter:\n%s", body)
	}
}
