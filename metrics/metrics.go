// Package metrics exposes Prometheus metrics for the interpreter session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Audio pipeline
	FramesSent     prometheus.Counter
	FramesReceived prometheus.Counter
	DecodeErrors   prometheus.Counter
	PlaybackFlush  prometheus.Counter

	// Session lifecycle
	State      *prometheus.GaugeVec
	Reconnects prometheus.Counter
	Errors     *prometheus.CounterVec
	TurnsTotal *prometheus.CounterVec
	ToolCalls  *prometheus.CounterVec
	UIClients  prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "openinterpret"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Encoded microphone frames sent to the live service",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Audio frames received from the live service",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_decode_errors_total",
			Help:      "Inbound audio frames dropped because they failed to decode",
		}),
		PlaybackFlush: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_flushes_total",
			Help:      "Times scheduled playback was cut off by an interruption",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Reconnect attempts scheduled after transient errors",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Session errors by kind",
		}, []string{"kind"}),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_turns_total",
			Help:      "Finalized transcript turns by role",
		}, []string{"role"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched by name and outcome",
		}, []string{"name", "outcome"}),
		UIClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ui_clients",
			Help:      "Connected UI websocket clients",
		}),
	}

	m.registry.MustRegister(
		m.FramesSent, m.FramesReceived, m.DecodeErrors, m.PlaybackFlush,
		m.State, m.Reconnects, m.Errors, m.TurnsTotal, m.ToolCalls, m.UIClients,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) FrameSent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.FramesReceived.Inc()
	}
}

func (m *Metrics) DecodeError() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

func (m *Metrics) Flushed() {
	if m != nil {
		m.PlaybackFlush.Inc()
	}
}

// SetState marks state as current among all.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) Error(kind string) {
	if m != nil {
		m.Errors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Turn(role string) {
	if m != nil {
		m.TurnsTotal.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) ToolCall(name, outcome string) {
	if m != nil {
		m.ToolCalls.WithLabelValues(name, outcome).Inc()
	}
}

func (m *Metrics) SetUIClients(n int) {
	if m != nil {
		m.UIClients.Set(float64(n))
	}
}
