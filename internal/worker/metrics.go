package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry       *prometheus.Registry
	clients        prometheus.Gauge
	clientMessages *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	dropped        prometheus.Counter
}

// newMetrics builds a private registry so several servers can coexist in one
// test binary.
func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulpit",
			Subsystem: "remote",
			Name:      "clients_connected",
			Help:      "Number of connected remote control clients.",
		}),
		clientMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulpit",
			Subsystem: "remote",
			Name:      "client_messages_total",
			Help:      "Messages received from clients by type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulpit",
			Subsystem: "remote",
			Name:      "deliveries_total",
			Help:      "Messages pushed to clients by type and mode.",
		}, []string{"type", "mode"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulpit",
			Subsystem: "remote",
			Name:      "dropped_total",
			Help:      "Messages dropped because the target client left or was too slow.",
		}),
	}
	m.registry.MustRegister(m.clients, m.clientMessages, m.deliveries, m.dropped)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
