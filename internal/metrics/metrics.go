// Package metrics exposes relay activity as Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so the relay loop can hold an
// optional instance without checking it on every transfer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "sockwrench"

// Direction labels for the bytes counter
const (
	DirectionInputToOutput = "input_to_output"
	DirectionOutputToInput = "output_to_input"
)

// Metrics holds the collectors for one relay process
type Metrics struct {
	registry *prometheus.Registry

	bytes         *prometheus.CounterVec
	iterations    prometheus.Counter
	pollTimeouts  prometheus.Counter
	peersAccepted prometheus.Counter
	peersDropped  prometheus.Counter
	peers         prometheus.Gauge
}

// New creates the collectors and registers them on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "relayed_bytes_total",
			Help:      "Bytes written to the opposite channel, by direction.",
		}, []string{"direction"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "loop_iterations_total",
			Help:      "Relay loop iterations.",
		}),
		pollTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "poll_timeouts_total",
			Help:      "Readiness waits that expired with no descriptor ready.",
		}),
		peersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tcp_peers_accepted_total",
			Help:      "Connections accepted by tcpin channels.",
		}),
		peersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tcp_peers_dropped_total",
			Help:      "Peers removed from tcpin channels after end of stream or failure.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "tcp_peers",
			Help:      "Peers currently connected to tcpin channels.",
		}),
	}

	m.registry.MustRegister(
		m.bytes,
		m.iterations,
		m.pollTimeouts,
		m.peersAccepted,
		m.peersDropped,
		m.peers,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	// Both directions show up at zero before any traffic.
	m.bytes.WithLabelValues(DirectionInputToOutput)
	m.bytes.WithLabelValues(DirectionOutputToInput)

	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AddBytes counts n bytes relayed in direction
func (m *Metrics) AddBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

// Iteration counts one relay loop iteration
func (m *Metrics) Iteration() {
	if m == nil {
		return
	}
	m.iterations.Inc()
}

// PollTimeout counts one readiness wait that expired
func (m *Metrics) PollTimeout() {
	if m == nil {
		return
	}
	m.pollTimeouts.Inc()
}

// PeerAccepted records a new tcpin peer
func (m *Metrics) PeerAccepted() {
	if m == nil {
		return
	}
	m.peersAccepted.Inc()
	m.peers.Inc()
}

// PeerDropped records a tcpin peer removed after end of stream or failure
func (m *Metrics) PeerDropped() {
	if m == nil {
		return
	}
	m.peersDropped.Inc()
	m.peers.Dec()
}
