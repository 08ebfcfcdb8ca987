package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Bridge metrics
	Calls           *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	InstallFailures *prometheus.CounterVec
	SessionsActive  *prometheus.GaugeVec
	SessionsTotal   *prometheus.CounterVec
	PortMessages    *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	startTime time.Time
}

var _ bridge.Recorder = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with process and Go runtime
// collectors attached.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_calls_total",
				Help: "Total number of one-shot native calls",
			},
			[]string{"channel", "action", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_call_duration_seconds",
				Help:    "One-shot native call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"channel", "action"},
		),
		InstallFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_channel_install_failures_total",
				Help: "Channels whose message delegate could not be installed",
			},
			[]string{"channel"},
		),
		SessionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_sessions_active",
				Help: "Number of active streaming sessions",
			},
			[]string{"channel"},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_sessions_total",
				Help: "Streaming sessions by terminal outcome",
			},
			[]string{"channel", "outcome"},
		),
		PortMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_port_messages_total",
				Help: "Messages crossing streaming ports",
			},
			[]string{"channel", "direction"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.Calls, m.CallDuration, m.InstallFailures,
		m.SessionsActive, m.SessionsTotal, m.PortMessages,
		m.RequestsTotal, m.RequestDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_uptime_seconds",
			Help: "Shell uptime in seconds",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CallCompleted records a one-shot call.
func (m *Metrics) CallCompleted(channel, action, status string, elapsed time.Duration) {
	m.Calls.WithLabelValues(channel, action, status).Inc()
	m.CallDuration.WithLabelValues(channel, action).Observe(elapsed.Seconds())
}

// InstallFailed records a channel whose delegate was refused by the host.
func (m *Metrics) InstallFailed(channel string) {
	m.InstallFailures.WithLabelValues(channel).Inc()
}

// SessionOpened records a streaming session entering Running.
func (m *Metrics) SessionOpened(channel string) {
	m.SessionsActive.WithLabelValues(channel).Inc()
}

// SessionClosed records a streaming session reaching a terminal outcome.
func (m *Metrics) SessionClosed(channel, outcome string) {
	m.SessionsActive.WithLabelValues(channel).Dec()
	m.SessionsTotal.WithLabelValues(channel, outcome).Inc()
}

// PortMessage records one message on a port in the given direction.
func (m *Metrics) PortMessage(channel, direction string) {
	m.PortMessages.WithLabelValues(channel, direction).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
