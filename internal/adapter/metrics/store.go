package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics covers the backing stores: Postgres queries and Redis
// commands.
type StoreMetrics struct {
	QueryDuration   *prometheus.HistogramVec
	QueryErrors     *prometheus.CounterVec
	RedisOps        *prometheus.CounterVec
	RedisOpDuration *prometheus.HistogramVec
	RedisDialErrors prometheus.Counter
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by statement kind.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"query"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Failed database queries by statement kind.",
		}, []string{"query"}),
		RedisOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Redis commands by operation and status.",
		}, []string{"operation", "status"}),
		RedisOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Redis command latency.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"operation"}),
		RedisDialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "dial_errors_total",
			Help:      "Failed attempts to open a Redis connection.",
		}),
	}

	reg.MustRegister(m.QueryDuration, m.QueryErrors, m.RedisOps, m.RedisOpDuration, m.RedisDialErrors)
	return m
}

func (m *StoreMetrics) ObserveQuery(query string, took time.Duration, err error) {
	m.QueryDuration.WithLabelValues(query).Observe(took.Seconds())
	if err != nil {
		m.QueryErrors.WithLabelValues(query).Inc()
	}
}

func (m *StoreMetrics) ObserveRedisOp(operation string, took time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	m.RedisOps.WithLabelValues(operation, status).Inc()
	m.RedisOpDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *StoreMetrics) ObserveRedisDialError() {
	m.RedisDialErrors.Inc()
}
