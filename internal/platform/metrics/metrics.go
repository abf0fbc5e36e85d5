package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LogAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wckv",
			Subsystem: "log",
			Name:      "appends_total",
			Help:      "Number of records appended to log groups.",
		}, []string{"result"})
	LogRegionRotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wckv",
			Subsystem: "log",
			Name:      "region_rotations_total",
			Help:      "Number of log regions sealed and replaced by a new region.",
		})

	MemTableFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wckv",
			Subsystem: "lsm",
			Name:      "memtable_flushes_total",
			Help:      "Number of frozen memtables merged into level 0.",
		})
	CompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wckv",
			Subsystem: "lsm",
			Name:      "compactions_total",
			Help:      "Number of level cascades, labeled by source level.",
		}, []string{"level", "result"})
	CompactionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wckv",
			Subsystem: "lsm",
			Name:      "compaction_seconds",
			Help:      "Time spent in a single level cascade step.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		})

	EngineOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wckv",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Number of engine operations.",
		}, []string{"operation", "result"})
	FindCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wckv",
			Subsystem: "engine",
			Name:      "find_cache_requests_total",
			Help:      "Multi-column find cache lookups.",
		}, []string{"result"})
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

func init() {
	prometheus.MustRegister(
		LogAppendsTotal,
		LogRegionRotationsTotal,
		MemTableFlushesTotal,
		CompactionsTotal,
		CompactionSeconds,
		EngineOperationsTotal,
		FindCacheRequestsTotal,
	)
}

func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
