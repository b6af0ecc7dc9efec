package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the actor cache and the Redis
// circuit breaker in front of it.
type CacheMetrics struct {
	Hits               prometheus.Counter
	Misses             prometheus.Counter
	Invalidations      prometheus.Counter
	BreakerTransitions *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor_cache",
			Name:      "hits_total",
			Help:      "Actor lookups answered from Redis.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor_cache",
			Name:      "misses_total",
			Help:      "Actor lookups that fell through to the store.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor_cache",
			Name:      "invalidations_total",
			Help:      "Cached actors dropped on account changes.",
		}),
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "breaker_transitions_total",
			Help:      "Redis circuit breaker state changes, by new state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations, m.BreakerTransitions)
	return m
}

func (m *CacheMetrics) ObserveLookup(hit bool) {
	if hit {
		m.Hits.Inc()
		return
	}
	m.Misses.Inc()
}

func (m *CacheMetrics) ObserveInvalidation() {
	m.Invalidations.Inc()
}

// ObserveBreaker counts a Redis circuit breaker transition into state to.
func (m *CacheMetrics) ObserveBreaker(to string) {
	m.BreakerTransitions.WithLabelValues(to).Inc()
}
