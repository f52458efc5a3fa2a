package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK           = "ok"
	ResultNotConnected = "not_connected"
	ResultDenied       = "denied"
	ResultInvalid      = "invalid"
	ResultError        = "error"
)

// Metrics holds the collectors of one facade. Each facade registers on its
// own registry so tests and embedders never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	// Connected is 1 while a vehicle link is held, 0 otherwise.
	Connected prometheus.Gauge

	// Commands counts facade commands by name and outcome.
	Commands *prometheus.CounterVec

	// DiagDropped counts diagnostic entries dropped on a full queue.
	DiagDropped prometheus.Counter

	// DecodeSeconds observes camera frame decode latency.
	DecodeSeconds prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drone_connected",
			Help: "Vehicle link status (1=Connected, 0=Disconnected).",
		}),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drone_commands_total",
				Help: "Total number of facade commands by result.",
			},
			[]string{"command", "result"},
		),
		DiagDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drone_diag_dropped_total",
			Help: "Diagnostic log entries dropped because the writer queue was full.",
		}),
		DecodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drone_frame_decode_seconds",
			Help:    "Latency of decoding camera frames.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.Registry.MustRegister(m.Connected, m.Commands, m.DiagDropped, m.DecodeSeconds)
	return m
}

// SetConnected mirrors the link status into the gauge.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

func (m *Metrics) Command(name, result string) {
	m.Commands.WithLabelValues(name, result).Inc()
}
