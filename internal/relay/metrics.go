package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mfa_relay_connection_attempts_total", Help: "Source connection attempts by outcome"},
		[]string{"outcome"},
	)
	connected = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "mfa_relay_connected", Help: "1 while the source connection is open"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mfa_relay_messages_total", Help: "Frames received from the source by kind"},
		[]string{"kind"},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mfa_relay_deliveries_total", Help: "Code deliveries by outcome"},
		[]string{"outcome"},
	)
	deliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "mfa_relay_delivery_duration_seconds", Help: "Time from dispatch to delivery result", Buckets: prometheus.DefBuckets},
	)
)

// Register registers the relay metrics with the provided registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(connectionAttempts, connected, messages, deliveries, deliveryDuration)
}
