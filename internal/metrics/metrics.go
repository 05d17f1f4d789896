// Package metrics holds the Prometheus collectors of the simulation server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Server groups the collectors updated by the transport server.
type Server struct {
	Requests    *prometheus.CounterVec
	Simulation  prometheus.Histogram
	BytesSent   prometheus.Counter
	Connections prometheus.Gauge
}

// NewServer creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered, which tests rely on.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raysim_requests_total",
				Help: "Simulation requests served, by outcome",
			},
			[]string{"outcome"},
		),
		Simulation: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "raysim_simulation_seconds",
				Help:    "Duration of ray-tracing plus post-processing",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		BytesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "raysim_bytes_sent_total",
				Help: "Bytes streamed back to clients",
			},
		),
		Connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raysim_active_connections",
				Help: "Client connections currently being served",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Simulation, m.BytesSent, m.Connections)
	}
	return m
}
