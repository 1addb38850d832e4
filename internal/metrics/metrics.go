// Package metrics exposes Prometheus instrumentation for the real-time
// core. Collectors register on the default registry and are served on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks the number of live websocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tidechat",
		Subsystem: "ws",
		Name:      "connections_active",
		Help:      "Number of currently connected websocket clients.",
	})

	// EventsTotal counts inbound events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tidechat",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Inbound real-time events processed, by event type.",
	}, []string{"type"})

	// EventErrorsTotal counts events that ended in a typed error unicast.
	EventErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tidechat",
		Subsystem: "ws",
		Name:      "event_errors_total",
		Help:      "Inbound events rejected or failed, by event type.",
	}, []string{"type"})

	// BroadcastDeliveriesTotal counts event copies handed to connections.
	BroadcastDeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tidechat",
		Subsystem: "ws",
		Name:      "broadcast_deliveries_total",
		Help:      "Event copies delivered to room members and presence observers.",
	})
)
