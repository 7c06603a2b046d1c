package usecase

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"askcode/internal/domain"
)

// Metrics tracks query counts and mean latency. Each query is recorded
// once, when it completes, so the mean always covers exactly Queries samples.
type Metrics struct {
	mu        sync.Mutex
	queries   int64
	cacheHits int64
	avg       float64

	queriesTotal   prometheus.Counter
	cacheHitsTotal prometheus.Counter
	latency        prometheus.Histogram
	tiers          *prometheus.CounterVec
}

// NewMetrics registers the prometheus collectors with reg. A nil reg
// keeps the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askcode_queries_total",
			Help: "Questions answered, including cache hits.",
		}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askcode_cache_hits_total",
			Help: "Questions served from the response cache.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "askcode_query_latency_seconds",
			Help:    "End-to-end question latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		tiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askcode_model_tier_total",
			Help: "Model invocations by tier.",
		}, []string{"tier"}),
	}
	if reg != nil {
		reg.MustRegister(m.queriesTotal, m.cacheHitsTotal, m.latency, m.tiers)
	}
	return m
}

// Observe records one completed query.
func (m *Metrics) Observe(latency time.Duration, cacheHit bool) {
	secs := latency.Seconds()

	m.mu.Lock()
	m.queries++
	if cacheHit {
		m.cacheHits++
	}
	n := float64(m.queries)
	m.avg = (m.avg*(n-1) + secs) / n
	m.mu.Unlock()

	m.queriesTotal.Inc()
	if cacheHit {
		m.cacheHitsTotal.Inc()
	}
	m.latency.Observe(secs)
}

func (m *Metrics) ObserveTier(tier domain.Tier) {
	m.tiers.WithLabelValues(string(tier)).Inc()
}

func (m *Metrics) Snapshot() domain.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.MetricsSnapshot{
		Queries:     m.queries,
		CacheHits:   m.cacheHits,
		AvgLatencyS: m.avg,
	}
}
