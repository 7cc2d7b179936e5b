package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal counts accepted WebSocket connections.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomchat_connections_total",
		Help: "Accepted WebSocket connections.",
	})

	// ActiveSessions tracks sessions currently registered in a roster.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomchat_active_sessions",
		Help: "Sessions currently registered across all rooms.",
	})

	// MessagesTotal counts chat messages stamped and broadcast.
	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomchat_messages_total",
		Help: "Chat messages stamped and broadcast.",
	})

	// HistoryAppendFailures counts history writes that were dropped.
	HistoryAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomchat_history_append_failures_total",
		Help: "History writes that failed after the message was broadcast.",
	})
)

// Handler exposes Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
