package sampler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "powertag"

// Metrics owns the Prometheus registry for the service.
//
// It implements register.Observer, so the Reader reports read failures
// straight into it.
type Metrics struct {
	registry *prometheus.Registry

	readFailures   *prometheus.CounterVec
	readsExhausted *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	cycles         prometheus.Counter
	overruns       prometheus.Counter
	state          prometheus.Gauge
	alerts         *prometheus.CounterVec
	lastCycle      prometheus.Gauge
}

// NewMetrics creates and registers every collector, including the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "register_read_failures_total",
			Help:      "Failed register read attempts, including retried ones.",
		}, []string{"gateway", "register"}),
		readsExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "register_reads_exhausted_total",
			Help:      "Register reads that failed on every attempt.",
		}, []string{"gateway", "register"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time taken to read every device once.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Completed sampling cycles.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_overruns_total",
			Help:      "Cycles that took longer than the poll interval.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "scheduler_state",
			Help:      "Scheduler state: 0 idle, 1 connecting, 2 running, 3 stopped, 4 failed.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_total",
			Help:      "Alert events raised after cooldown.",
		}, []string{"tag"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last published snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.readFailures,
		m.readsExhausted,
		m.cycleDuration,
		m.cycles,
		m.overruns,
		m.state,
		m.alerts,
		m.lastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// DispatchStats is implemented by notify.Dispatcher.
type DispatchStats interface {
	Delivered() uint64
	Failed() uint64
	Dropped() uint64
}

// RegisterDispatcher exposes notification delivery counters.
// Call it once per registry.
func (m *Metrics) RegisterDispatcher(d DispatchStats) {
	counter := func(name, help string, fn func() uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}
	m.registry.MustRegister(
		counter("notifications_delivered_total", "Notifications delivered to a channel.", d.Delivered),
		counter("notifications_failed_total", "Notification deliveries that failed.", d.Failed),
		counter("notifications_dropped_total", "Notifications dropped because the queue was full.", d.Dropped),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ReadFailed implements register.Observer.
func (m *Metrics) ReadFailed(gateway, key string) {
	m.readFailures.WithLabelValues(gateway, key).Inc()
}

// ReadExhausted implements register.Observer.
func (m *Metrics) ReadExhausted(gateway, key string) {
	m.readsExhausted.WithLabelValues(gateway, key).Inc()
}

func (m *Metrics) observeCycle(d time.Duration, publishedAt time.Time) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.lastCycle.Set(float64(publishedAt.Unix()))
}

func (m *Metrics) overrun() {
	m.overruns.Inc()
}

func (m *Metrics) setState(s State) {
	m.state.Set(float64(s))
}

func (m *Metrics) alertRaised(tag string) {
	m.alerts.WithLabelValues(tag).Inc()
}
