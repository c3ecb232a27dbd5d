// Package metrics defines the Prometheus instrumentation for the realtime core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry metrics
var (
	// RegistryConnectedClients tracks currently registered connections.
	RegistryConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_connected_clients",
			Help: "Currently registered realtime connections",
		},
	)

	// RegistryActiveRooms tracks rooms with at least one member.
	RegistryActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_active_rooms",
			Help: "Rooms with at least one joined connection",
		},
	)

	// RegistrySlowSinksEvicted tracks connections dropped for full send buffers.
	RegistrySlowSinksEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_slow_sinks_evicted_total",
			Help: "Connections evicted because their send buffer was full during broadcast",
		},
	)

	// RegistryBroadcastFanout tracks per-broadcast recipient counts.
	RegistryBroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registry_broadcast_fanout",
			Help:    "Number of connections reached per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
)

// Dispatcher metrics
var (
	// EventsEmittedTotal tracks emitted events by event name.
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_events_emitted_total",
			Help: "Events handed to the broadcaster by event name",
		},
		[]string{"event"},
	)

	// EventsDroppedTotal tracks events dropped before broadcast by reason.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_events_dropped_total",
			Help: "Events dropped before broadcast by event name and reason",
		},
		[]string{"event", "reason"},
	)
)

// Gateway metrics
var (
	// GatewayControlOpsTotal tracks inbound control operations by action and outcome.
	GatewayControlOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_control_ops_total",
			Help: "Inbound control operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// GatewayMessageSendDuration tracks WebSocket write latency in seconds.
	GatewayMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// GatewayPingFailures tracks failed keepalive pings.
	GatewayPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_ping_failures_total",
			Help: "Keepalive pings that failed to write",
		},
	)
)

// Server metrics
var (
	// ConnectionsRejectedTotal tracks websocket connections rejected before upgrade.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "server_connections_rejected_total",
			Help: "WebSocket connections rejected before upgrade by reason",
		},
		[]string{"reason"},
	)
)

// Follower cache metrics
var (
	// FollowerCacheHits tracks follower-list lookups served from Redis.
	FollowerCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "follower_cache_hits_total",
			Help: "Follower list lookups served from the Redis cache",
		},
	)

	// FollowerCacheMisses tracks follower-list lookups that fell through to the source.
	FollowerCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "follower_cache_misses_total",
			Help: "Follower list lookups that fell through to the backing directory",
		},
	)
)
