// Package metrics exposes process counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "calls"

type Metrics struct {
	Registry *prometheus.Registry

	CallsCreated        prometheus.Counter
	CallsTerminated     *prometheus.CounterVec
	RoomsActive         prometheus.Gauge
	PeersConnected      prometheus.Gauge
	SignalMessages      *prometheus.CounterVec
	RelayDropped        prometheus.Counter
	PeersEvicted        prometheus.Counter
	NotificationsFailed prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CallsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "created_total",
			Help: "Calls created.",
		}),
		CallsTerminated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "terminated_total",
			Help: "Calls moved to a terminal state, by reason.",
		}, []string{"reason"}),
		RoomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Signaling rooms with at least one peer.",
		}),
		PeersConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peers_joined",
			Help: "Peers currently joined to a room.",
		}),
		SignalMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_messages_total",
			Help: "Inbound signaling messages, by type.",
		}, []string{"type"}),
		RelayDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_dropped_total",
			Help: "Relay messages dropped because the target was absent.",
		}),
		PeersEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "peers_evicted_total",
			Help: "Peers disconnected after a failed send.",
		}),
		NotificationsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_failed_total",
			Help: "Notifications the sink failed to deliver.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) CallCreated() {
	if m != nil {
		m.CallsCreated.Inc()
	}
}

func (m *Metrics) CallTerminated(reason string) {
	if m != nil {
		m.CallsTerminated.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.RoomsActive.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.RoomsActive.Dec()
	}
}

func (m *Metrics) PeerJoined() {
	if m != nil {
		m.PeersConnected.Inc()
	}
}

func (m *Metrics) PeerLeft() {
	if m != nil {
		m.PeersConnected.Dec()
	}
}

func (m *Metrics) SignalMessage(typ string) {
	if m != nil {
		m.SignalMessages.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) RelayDrop() {
	if m != nil {
		m.RelayDropped.Inc()
	}
}

func (m *Metrics) PeerEvicted() {
	if m != nil {
		m.PeersEvicted.Inc()
	}
}

func (m *Metrics) NotificationFailed() {
	if m != nil {
		m.NotificationsFailed.Inc()
	}
}
