// Package diag exposes the reader's diagnostics side channel as prometheus
// metrics: frame and drop counters, reconnect counts and the session state.
package diag

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons used as label values on the dropped-frames counter.
const (
	ReasonChecksum     = "checksum_mismatch"
	ReasonUnrecognized = "unrecognized"
	ReasonImplausible  = "implausible_value"
	ReasonOverlong     = "frame_too_long"
)

// Metrics holds the reader's prometheus collectors. A nil *Metrics is valid
// and turns every recording method into a no-op, so components never need to
// care whether diagnostics are enabled.
type Metrics struct {
	framesTotal   prometheus.Counter
	readingsTotal prometheus.Counter
	droppedTotal  *prometheus.CounterVec
	reconnects    prometheus.Counter
	sessionState  prometheus.Gauge
}

// New creates the collectors and registers them on the default registry.
func New() *Metrics {
	m := &Metrics{
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jeelink_frames_total",
			Help: "Total frames received from the device.",
		}),
		readingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jeelink_readings_total",
			Help: "Total sensor readings successfully decoded.",
		}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jeelink_dropped_frames_total",
			Help: "Total frames dropped, by reason.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jeelink_reconnects_total",
			Help: "Total reconnect attempts after a session fault.",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jeelink_session_state",
			Help: "Session state (0 disconnected, 1 connecting, 2 configuring, 3 streaming, 4 faulted).",
		}),
	}

	prometheus.MustRegister(
		m.framesTotal,
		m.readingsTotal,
		m.droppedTotal,
		m.reconnects,
		m.sessionState,
	)
	return m
}

// Frame records one received frame.
func (m *Metrics) Frame() {
	if m == nil {
		return
	}
	m.framesTotal.Inc()
}

// Reading records one successfully decoded reading.
func (m *Metrics) Reading() {
	if m == nil {
		return
	}
	m.readingsTotal.Inc()
}

// Dropped records one dropped frame with its reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// Reconnect records one reconnect attempt.
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// SessionState records the current session state value.
func (m *Metrics) SessionState(s int) {
	if m == nil {
		return
	}
	m.sessionState.Set(float64(s))
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
