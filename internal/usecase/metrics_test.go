package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"askcode/internal/domain"
)

func TestMetrics_IncrementalMean(t *testing.T) {
	m := NewMetrics(nil)
	latencies := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 200 * time.Millisecond, 1 * time.Second}

	sum := 0.0
	for i, l := range latencies {
		m.Observe(l, i%2 == 0)
		sum += l.Seconds()
	}

	s := m.Snapshot()
	assert.Equal(t, int64(4), s.Queries)
	assert.Equal(t, int64(2), s.CacheHits)
	assert.InDelta(t, sum/4, s.AvgLatencyS, 1e-9)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics(nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Observe(500*time.Millisecond, false)
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(100), s.Queries)
	assert.InDelta(t, 0.5, s.AvgLatencyS, 1e-9)
}

func TestMetrics_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(time.Second, true)
	m.Observe(time.Second, false)
	m.ObserveTier(domain.TierHigh)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tiers.WithLabelValues("HIGH")))

	n, err := testutil.GatherAndCount(reg, "askcode_queries_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
