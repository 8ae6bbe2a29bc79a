// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for one bridge instance.
// Transport failures surface here as state transitions and counters,
// never as errors to store readers.
type Metrics struct {
	FramesReceived prometheus.Counter
	FramesSent     prometheus.Counter
	FramesDropped  prometheus.Counter
	Reconnects     prometheus.Counter

	sessionState prometheus.Gauge
}

// NewMetrics creates and registers the collectors. The store gauge
// reports how many indices have been observed so far.
func NewMetrics(reg prometheus.Registerer, store *Store) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xkop_frames_received_total",
			Help: "Valid frames decoded from the controller.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xkop_frames_sent_total",
			Help: "Frames transmitted to the controller.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xkop_frames_dropped_total",
			Help: "Malformed candidate frames dropped during resynchronization.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xkop_session_connects_total",
			Help: "Successful connects, including reconnects after failure.",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xkop_session_state",
			Help: "Session state: 0 disconnected, 1 connecting, 2 connected, 3 error.",
		}),
	}

	indices := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "xkop_indices_observed",
		Help: "Distinct controller indices observed since start.",
	}, func() float64 { return float64(store.Len()) })

	reg.MustRegister(m.FramesReceived, m.FramesSent, m.FramesDropped, m.Reconnects, m.sessionState, indices)
	return m
}

// SetSessionState publishes a session state transition.
func (m *Metrics) SetSessionState(st SessionState) {
	m.sessionState.Set(float64(st))
}
