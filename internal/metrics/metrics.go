// Package metrics declares the Prometheus instruments shared by both
// relay services.
//
// Naming convention: namespace_subsystem_name
//   - namespace: transport_relay
//   - subsystem: connection, room, router, signaling, sweeper, ratelimit, circuit_breaker
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transport_relay",
		Subsystem: "connection",
		Name:      "active",
		Help:      "Current number of active connections in the Connection Table",
	}, []string{"service"})

	ActiveRooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transport_relay",
		Subsystem: "room",
		Name:      "active",
		Help:      "Current number of active rooms",
	}, []string{"service"})

	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transport_relay",
		Subsystem: "room",
		Name:      "participants",
		Help:      "Number of participants (producer + consumers) in each room",
	}, []string{"service", "workspace_id", "room_id"})

	RouterMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "router",
		Name:      "messages_total",
		Help:      "Total inbound messages processed by the router",
	}, []string{"service", "tag", "status"})

	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transport_relay",
		Subsystem: "router",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing an inbound message",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"service", "tag"})

	JointUpdatesBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "router",
		Name:      "joint_updates_broadcast_total",
		Help:      "Total non-empty joint_update deltas broadcast to consumers",
	}, []string{"workspace_id", "room_id"})

	SignalingRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "signaling",
		Name:      "relayed_total",
		Help:      "Total signaling messages relayed to a live target",
	}, []string{"kind"})

	SignalingDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "signaling",
		Name:      "dropped_total",
		Help:      "Total signaling messages silently dropped (target missing or closed)",
	}, []string{"kind"})

	RoomsEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "sweeper",
		Name:      "rooms_evicted_total",
		Help:      "Total rooms evicted by the lifecycle sweeper",
	}, []string{"service"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transport_relay",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded a rate limit",
	}, []string{"endpoint", "reason"})

	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transport_relay",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Total requests checked against a rate limiter",
	}, []string{"endpoint"})
)
