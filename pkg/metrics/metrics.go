// Package metrics exports session lifecycle counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/QYUbit/Replica/pkg/multiplayer"
	"github.com/QYUbit/Replica/pkg/transport"
)

const namespace = "replica"

type Collector struct {
	sessionsInitialized prometheus.Counter
	sessionShutdowns    prometheus.Counter
	connectionsAcquired prometheus.Counter
	endpointDisconnects *prometheus.CounterVec
	connectionsActive   prometheus.Gauge
	spawnRequests       *prometheus.CounterVec
	validationFailures  prometheus.Counter
}

// NewCollector registers the session metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		sessionsInitialized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_initialized_total",
			Help:      "Multiplayer sessions that created their network interface",
		}),
		sessionShutdowns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_shutdowns_total",
			Help:      "Sessions ended by losing the host connection",
		}),
		connectionsAcquired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_acquired_total",
			Help:      "Connections that received a connection record",
		}),
		endpointDisconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_disconnects_total",
			Help:      "Processed endpoint disconnects by local agent type",
		}, []string{"agent"}),
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections with a live record",
		}),
		spawnRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_requests_total",
			Help:      "Player spawn requests by kind (local, remote)",
		}, []string{"kind"}),
		validationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Replication windows found without a valid controlled entity",
		}),
	}
}

// Attach subscribes the collector to every session event of sys. Handlers run
// on the System's goroutine.
func (c *Collector) Attach(sys *multiplayer.System) {
	sys.SessionInit.Subscribe(func(transport.NetworkInterface) {
		c.sessionsInitialized.Inc()
	})
	sys.SessionShutdown.Subscribe(func(transport.NetworkInterface) {
		c.sessionShutdowns.Inc()
	})
	sys.ConnectionAcquired.Subscribe(func(multiplayer.AgentDatum) {
		c.connectionsAcquired.Inc()
		c.connectionsActive.Set(float64(sys.ConnectionCount()))
	})
	sys.EndpointDisconnected.Subscribe(func(agent multiplayer.AgentType) {
		c.endpointDisconnects.WithLabelValues(agent.String()).Inc()
		c.connectionsActive.Set(float64(sys.ConnectionCount()))
	})
	sys.SpawnRequested.Subscribe(func(req multiplayer.SpawnRequest) {
		kind := "local"
		if req.Remote {
			kind = "remote"
		}
		c.spawnRequests.WithLabelValues(kind).Inc()
	})
	sys.ValidationFailed.Subscribe(func(error) {
		c.validationFailures.Inc()
	})
}
