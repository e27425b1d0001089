// Package metrics exposes coordinator counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "huddle"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	RoomsActive    prometheus.Gauge
	Connections    prometheus.Gauge
	Joins          *prometheus.CounterVec
	AdminOps       *prometheus.CounterVec
	SignalsRelayed *prometheus.CounterVec
	SignalsDropped *prometheus.CounterVec
	ChatMessages   prometheus.Counter
	StoreFailures  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently held in the registry.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open signaling connections.",
		}),
		Joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Join requests by outcome.",
		}, []string{"outcome"}),
		AdminOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_operations_total",
			Help:      "Admin operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		SignalsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_relayed_total",
			Help:      "Signaling messages handed to the target connection.",
		}, []string{"kind"}),
		SignalsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_dropped_total",
			Help:      "Signaling messages dropped because the target was absent or slow.",
		}, []string{"kind"}),
		ChatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages persisted and broadcast.",
		}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Persistence collaborator failures by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RoomsActive,
		m.Connections,
		m.Joins,
		m.AdminOps,
		m.SignalsRelayed,
		m.SignalsDropped,
		m.ChatMessages,
		m.StoreFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.RoomsActive.Set(float64(n))
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) Join(outcome string) {
	if m == nil {
		return
	}
	m.Joins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AdminOp(op, outcome string) {
	if m == nil {
		return
	}
	m.AdminOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SignalRelayed(kind string) {
	if m == nil {
		return
	}
	m.SignalsRelayed.WithLabelValues(kind).Inc()
}

func (m *Metrics) SignalDropped(kind string) {
	if m == nil {
		return
	}
	m.SignalsDropped.WithLabelValues(kind).Inc()
}

func (m *Metrics) ChatMessage() {
	if m == nil {
		return
	}
	m.ChatMessages.Inc()
}

func (m *Metrics) StoreFailure(op string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(op).Inc()
}
