package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PollerMetrics tracks the periodic inventory views.
type PollerMetrics struct {
	RefreshDuration *prometheus.HistogramVec
	RefreshFailures *prometheus.CounterVec
	ActiveAlerts    *prometheus.GaugeVec
	BreakerState    prometheus.Gauge
}

func NewPollerMetrics(reg prometheus.Registerer) *PollerMetrics {
	m := &PollerMetrics{
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "refresh_duration_seconds",
			Help:      "Time to read, derive and publish one inventory view.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
		RefreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "refresh_failures_total",
			Help:      "Inventory view refreshes that failed, by view.",
		}, []string{"view"}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "active_alerts",
			Help:      "Stock records currently alerting, by severity.",
		}, []string{"severity"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "store_breaker_state",
			Help:      "Store circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.RefreshDuration, m.RefreshFailures, m.ActiveAlerts, m.BreakerState)
	return m
}

// ObserveRefresh satisfies the poller's observer hook.
func (m *PollerMetrics) ObserveRefresh(view string, took time.Duration, err error) {
	m.RefreshDuration.WithLabelValues(view).Observe(took.Seconds())
	if err != nil {
		m.RefreshFailures.WithLabelValues(view).Inc()
	}
}

func (m *PollerMetrics) ObserveAlerts(bySeverity map[string]int) {
	for severity, n := range bySeverity {
		m.ActiveAlerts.WithLabelValues(severity).Set(float64(n))
	}
}

func (m *PollerMetrics) ObserveBreaker(state int) {
	m.BreakerState.Set(float64(state))
}
