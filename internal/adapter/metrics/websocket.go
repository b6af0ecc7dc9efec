package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics covers the connection lifecycle and command routing.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	RejectedConnections *prometheus.CounterVec
	AuthFailures        *prometheus.CounterVec
	MessagesSent        prometheus.Counter
	SlowClientEvictions prometheus.Counter
	Commands            *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		RejectedConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_connections_total",
			Help:      "Connection attempts refused before upgrade, by reason.",
		}, []string{"reason"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "auth_failures_total",
			Help:      "Failed session authentications, by reason.",
		}, []string{"reason"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Frames queued to connections.",
		}),
		SlowClientEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_client_evictions_total",
			Help:      "Connections closed because their send queue was full.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "commands_total",
			Help:      "Inbound commands by command and result code.",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "command_duration_seconds",
			Help:      "Time spent handling an inbound command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
	}

	reg.MustRegister(m.ActiveConnections, m.RejectedConnections, m.AuthFailures, m.MessagesSent,
		m.SlowClientEvictions, m.Commands, m.CommandDuration)
	return m
}
