// Package metrics defines the Prometheus instruments for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Supervisor metrics
var (
	// SupervisorConnectsTotal tracks connect requests by result
	SupervisorConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_connects_total",
			Help: "Connect requests by result (accepted/rejected)",
		},
		[]string{"result"},
	)

	// SupervisorDisconnectsTotal tracks disconnects by mode
	SupervisorDisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_disconnects_total",
			Help: "Disconnects by mode (graceful/forced/upstream)",
		},
		[]string{"mode"},
	)

	// SupervisorEventsDiscardedTotal tracks upstream events dropped by the intake filter
	SupervisorEventsDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_events_discarded_total",
			Help: "Upstream events dropped by the intake filter, by reason",
		},
		[]string{"reason"},
	)

	// SupervisorTeardownFailuresTotal tracks teardown steps that failed or timed out
	SupervisorTeardownFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_teardown_failures_total",
			Help: "Teardown steps that failed or timed out (absorbed, never fatal)",
		},
	)

	// SupervisorConnected reports whether an upstream session is live (0/1)
	SupervisorConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_connected",
			Help: "Whether an upstream session is currently connected (0/1)",
		},
	)
)

// Chat pipeline metrics
var (
	// ChatMessagesTotal tracks accepted chat messages by source
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Accepted chat messages by source (upstream/injected)",
		},
		[]string{"source"},
	)

	// PersistenceFailuresTotal tracks failed chat message writes
	PersistenceFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persistence_failures_total",
			Help: "Chat message writes that failed (best-effort, never blocks fan-out)",
		},
	)

	// PersistenceBreakerState tracks the persistence circuit breaker state (0=closed, 1=half-open, 2=open)
	PersistenceBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "persistence_breaker_state",
			Help: "Persistence circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Broadcaster metrics
var (
	// BroadcasterConnectedClients tracks currently connected WebSocket clients
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	// BroadcasterFanoutsTotal tracks fan-out operations
	BroadcasterFanoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_fanouts_total",
			Help: "Total fan-out operations",
		},
	)

	// BroadcasterSlowClientsEvictedTotal tracks slow clients evicted due to a full send buffer
	BroadcasterSlowClientsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_slow_clients_evicted_total",
			Help: "Slow WebSocket clients evicted due to a full send buffer",
		},
	)

	// BroadcasterPanicsTotal tracks broadcaster panic recoveries
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Broadcaster panic recoveries",
		},
	)

	// WebSocketMessageSendDuration tracks per-message write latency
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// WebSocketConnectionsRejectedTotal tracks rejected WebSocket upgrades by reason
	WebSocketConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Rejected WebSocket connections by reason",
		},
		[]string{"reason"},
	)
)
