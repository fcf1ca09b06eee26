package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_active_connections", Help: "Currently registered websocket connections"},
	)
	PriceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_updates_total", Help: "Price updates broadcast per ticker"},
		[]string{"ticker"},
	)
	DroppedMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ws_dropped_messages_total", Help: "Outbound frames dropped on backpressure or closed connections"},
	)
	AuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ws_auth_failures_total", Help: "Websocket handshakes rejected for authentication reasons"},
	)
)

func init() {
	prometheus.MustRegister(ActiveConnections, PriceUpdatesTotal, DroppedMessagesTotal, AuthFailuresTotal)
}

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
