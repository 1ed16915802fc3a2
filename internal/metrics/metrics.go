// Package metrics exposes Prometheus collectors for the executor, batch
// coordinator, and content cache.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	executionsTotal      *prometheus.CounterVec
	batchRunsTotal       *prometheus.CounterVec
	batchDurationSeconds prometheus.Histogram
	cacheHitsTotal       prometheus.Counter
	cacheMissesTotal     prometheus.Counter
	cachePutsTotal       prometheus.Counter
	cacheEvictionsTotal  prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		executionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcache_executions_total",
				Help: "Total engine executions, labeled by outcome kind.",
			},
			[]string{"outcome"},
		)

		batchRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcache_batch_runs_total",
				Help: "Total batch coordinator runs, labeled by result.",
			},
			[]string{"result"},
		)

		batchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawlcache_batch_duration_seconds",
				Help:    "Histogram of wall-clock batch durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
		)

		cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawlcache_cache_hits_total",
			Help: "Total cache lookups answered from the store.",
		})

		cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawlcache_cache_misses_total",
			Help: "Total cache lookups that missed.",
		})

		cachePutsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawlcache_cache_puts_total",
			Help: "Total entries written to the cache.",
		})

		cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawlcache_cache_evictions_total",
			Help: "Total entries removed by capacity eviction.",
		})
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveExecution counts one engine execution by outcome kind.
// "success" covers successful fetches; failures use the failure kind string.
func ObserveExecution(outcome string) {
	if executionsTotal == nil {
		return
	}
	executionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatch counts one batch run and records its wall-clock duration.
func ObserveBatch(result string, elapsed time.Duration) {
	if batchRunsTotal == nil {
		return
	}
	batchRunsTotal.WithLabelValues(result).Inc()
	batchDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveCacheHit counts one cache hit.
func ObserveCacheHit() {
	if cacheHitsTotal == nil {
		return
	}
	cacheHitsTotal.Inc()
}

// ObserveCacheMiss counts one cache miss.
func ObserveCacheMiss() {
	if cacheMissesTotal == nil {
		return
	}
	cacheMissesTotal.Inc()
}

// ObserveCachePut counts one cache write.
func ObserveCachePut() {
	if cachePutsTotal == nil {
		return
	}
	cachePutsTotal.Inc()
}

// ObserveCacheEviction counts one capacity eviction.
func ObserveCacheEviction() {
	if cacheEvictionsTotal == nil {
		return
	}
	cacheEvictionsTotal.Inc()
}
