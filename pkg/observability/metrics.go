package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Poll results.
const (
	PollOK      = "ok"
	PollTimeout = "timeout"
	PollError   = "error"
)

// Session events.
const (
	SessionStarted      = "started"
	SessionFailed       = "failed"
	SessionDisconnected = "disconnected"
	SessionTerminated   = "terminated"
)

// Metrics holds the controller collectors.
type Metrics struct {
	registry *prometheus.Registry

	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	attached     prometheus.Gauge
	attachErrors *prometheus.CounterVec
	sessions     *prometheus.CounterVec
	keystrokes   prometheus.Counter
}

// NewMetrics creates the collectors and registers them, plus the Go and process
// collectors, on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coaxterm_polls_total",
				Help: "Total number of POLL commands by result",
			},
			[]string{"result"},
		),
		pollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coaxterm_poll_duration_seconds",
				Help:    "Duration of POLL commands",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),
		attached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coaxterm_attached_devices",
				Help: "Number of currently attached terminals",
			},
		),
		attachErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coaxterm_attach_errors_total",
				Help: "Total number of failed attach attempts by reason",
			},
			[]string{"reason"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coaxterm_session_events_total",
				Help: "Total number of session lifecycle events",
			},
			[]string{"event"},
		),
		keystrokes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "coaxterm_keystrokes_total",
				Help: "Total number of keystrokes received from terminals",
			},
		),
	}

	m.registry.MustRegister(
		m.polls, m.pollDuration, m.attached, m.attachErrors, m.sessions, m.keystrokes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry to expose.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePoll records a POLL result and its duration.
func (m *Metrics) ObservePoll(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(d.Seconds())
}

// DeviceAttached records an attach.
func (m *Metrics) DeviceAttached() {
	if m == nil {
		return
	}
	m.attached.Inc()
}

// DeviceDetached records a detach.
func (m *Metrics) DeviceDetached() {
	if m == nil {
		return
	}
	m.attached.Dec()
}

// AttachFailed records a failed attach attempt.
func (m *Metrics) AttachFailed(reason string) {
	if m == nil {
		return
	}
	m.attachErrors.WithLabelValues(reason).Inc()
}

// SessionEvent records a session lifecycle event.
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}

// Keystroke records a keystroke.
func (m *Metrics) Keystroke() {
	if m == nil {
		return
	}
	m.keystrokes.Inc()
}
