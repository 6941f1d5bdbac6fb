package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated *prometheus.CounterVec
	SessionsRemoved prometheus.Counter
	CurrentSwitches prometheus.Counter
	Recreations     *prometheus.CounterVec
	StackDepth      *prometheus.GaugeVec

	// Dispatch metrics
	EventsDispatched *prometheus.CounterVec
	ListenerPanics   *prometheus.CounterVec
	Intercepted      *prometheus.CounterVec

	// Pop-up metrics
	PopupsQueued   prometheus.Counter
	PopupsResolved *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics registers all metrics with reg. Tests pass a fresh
// prometheus.NewRegistry(); nil means the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionhub_sessions_active",
				Help: "Number of sessions in the registry",
			},
		),
		SessionsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_sessions_created_total",
				Help: "Total number of sessions created",
			},
			[]string{"mode"},
		),
		SessionsRemoved: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionhub_sessions_removed_total",
				Help: "Total number of sessions removed",
			},
		),
		CurrentSwitches: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionhub_current_switches_total",
				Help: "Total number of current session changes",
			},
		),
		Recreations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_recreations_total",
				Help: "Sessions recreated after a settings change",
			},
			[]string{"setting"},
		),
		StackDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessionhub_stack_depth",
				Help: "Depth of the session stacks",
			},
			[]string{"mode"},
		),

		EventsDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_events_dispatched_total",
				Help: "Events delivered to listeners",
			},
			[]string{"category"},
		),
		ListenerPanics: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_listener_panics_total",
				Help: "Listener calls that panicked",
			},
			[]string{"category"},
		),
		Intercepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_load_requests_intercepted_total",
				Help: "Load requests decided by an interceptor",
			},
			[]string{"interceptor"},
		),

		PopupsQueued: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionhub_popups_queued_total",
				Help: "Pop-up requests queued for a decision",
			},
		),
		PopupsResolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_popups_resolved_total",
				Help: "Pop-up requests resolved",
			},
			[]string{"outcome"},
		),

		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionhub_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionhub_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SessionCreated counts a new session
func (m *Metrics) SessionCreated(private bool) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(modeLabel(private)).Inc()
}

// SessionRemoved counts a removed session
func (m *Metrics) SessionRemoved() {
	if m == nil {
		return
	}
	m.SessionsRemoved.Inc()
}

// SetSessionsActive sets the registry size
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}

// SetStackDepth sets the depth of one stack
func (m *Metrics) SetStackDepth(private bool, depth int) {
	if m == nil {
		return
	}
	m.StackDepth.WithLabelValues(modeLabel(private)).Set(float64(depth))
}

// CurrentSwitched counts a current session change
func (m *Metrics) CurrentSwitched() {
	if m == nil {
		return
	}
	m.CurrentSwitches.Inc()
}

// Recreated counts a settings-driven recreation
func (m *Metrics) Recreated(setting string) {
	if m == nil {
		return
	}
	m.Recreations.WithLabelValues(setting).Inc()
}

// EventDispatched counts one event delivered to one listener
func (m *Metrics) EventDispatched(category string) {
	if m == nil {
		return
	}
	m.EventsDispatched.WithLabelValues(category).Inc()
}

// ListenerPanicked counts a recovered listener panic
func (m *Metrics) ListenerPanicked(category string) {
	if m == nil {
		return
	}
	m.ListenerPanics.WithLabelValues(category).Inc()
}

// LoadIntercepted counts a load request decided by an interceptor
func (m *Metrics) LoadIntercepted(interceptor string) {
	if m == nil {
		return
	}
	m.Intercepted.WithLabelValues(interceptor).Inc()
}

// PopupQueued counts a queued pop-up
func (m *Metrics) PopupQueued() {
	if m == nil {
		return
	}
	m.PopupsQueued.Inc()
}

// PopupResolved counts a resolved pop-up by outcome
func (m *Metrics) PopupResolved(outcome string) {
	if m == nil {
		return
	}
	m.PopupsResolved.WithLabelValues(outcome).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

func modeLabel(private bool) string {
	if private {
		return "private"
	}
	return "normal"
}
