// Package observability exposes Prometheus collectors and OpenTelemetry
// tracing setup shared across the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidequest_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of open chat sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sidequest_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts inbound chat events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidequest_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidequest_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ChatMessagesTotal counts persisted chat messages.
	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidequest_chat_messages_total",
		Help: "Total number of chat messages persisted",
	})

	// AssetIngestTotal counts image ingestion attempts by outcome.
	AssetIngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidequest_asset_ingest_total",
		Help: "Total image ingestion attempts by outcome",
	}, []string{"outcome"})

	// EmailsTotal counts outbound emails by outcome.
	EmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidequest_emails_total",
		Help: "Total outbound emails by outcome",
	}, []string{"outcome"})
)
