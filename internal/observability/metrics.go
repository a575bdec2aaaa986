// Package observability provides Prometheus metrics, OpenTelemetry tracing,
// and structured logging for the chunking pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds all Prometheus metrics for the pipeline.
type MetricsCollector struct {
	FilesScannedTotal    prometheus.Counter
	FilesSkippedTotal    *prometheus.CounterVec
	ChunksEmittedTotal   *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheEvictionsTotal  prometheus.Counter
	DispatcherQueueDepth prometheus.Gauge
	DispatcherFileDur    *prometheus.HistogramVec
	DispatcherFailures   *prometheus.CounterVec
	RouterBatchDuration  prometheus.Histogram
	RouterRetriesTotal   prometheus.Counter
	RouterFailuresTotal  prometheus.Counter
	SystemStartTime      prometheus.Gauge
}

// NewMetricsCollector creates and registers all Prometheus metrics using the
// default registerer.
func NewMetricsCollector(namespace string) *MetricsCollector {
	return NewMetricsCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates metrics with a specific registry
// (for testing, or to avoid colliding with other collectors in-process).
func NewMetricsCollectorWithRegistry(namespace string, reg prometheus.Registerer) *MetricsCollector {
	if namespace == "" {
		namespace = "chunkindex"
	}

	autoCounterVec := func(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
		return promauto.With(reg).NewCounterVec(opts, labelNames)
	}
	autoHistogramVec := func(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
		return promauto.With(reg).NewHistogramVec(opts, labelNames)
	}
	autoCounter := func(opts prometheus.CounterOpts) prometheus.Counter {
		return promauto.With(reg).NewCounter(opts)
	}
	autoGauge := func(opts prometheus.GaugeOpts) prometheus.Gauge {
		return promauto.With(reg).NewGauge(opts)
	}
	autoHistogram := func(opts prometheus.HistogramOpts) prometheus.Histogram {
		return promauto.With(reg).NewHistogram(opts)
	}

	return &MetricsCollector{
		FilesScannedTotal: autoCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_scanned_total",
			Help:      "Total number of files admitted by the scanner",
		}),
		FilesSkippedTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_skipped_total",
				Help:      "Total number of files skipped by the scanner, by reason",
			},
			[]string{"reason"},
		),
		ChunksEmittedTotal: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_emitted_total",
				Help:      "Total number of chunks emitted, by chunk type",
			},
			[]string{"type"},
		),
		CacheHitsTotal: autoCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of ChunkCache hits",
		}),
		CacheMissesTotal: autoCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of ChunkCache misses",
		}),
		CacheEvictionsTotal: autoCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of ChunkCache entries evicted by the LRU entry and size limits",
		}),
		DispatcherQueueDepth: autoGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_queue_depth",
			Help:      "Number of files currently queued or in flight in the dispatcher",
		}),
		DispatcherFileDur: autoHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatcher_file_duration_seconds",
				Help:      "Per-file parse+chunk duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"language"},
		),
		DispatcherFailures: autoCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatcher_failures_total",
				Help:      "Total number of files that failed dispatch, by error type",
			},
			[]string{"error_type"},
		),
		RouterBatchDuration: autoHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "router_batch_duration_seconds",
			Help:      "ChunkSink batch round-trip duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		RouterRetriesTotal: autoCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_retries_total",
			Help:      "Total number of ChunkSink batch retries",
		}),
		RouterFailuresTotal: autoCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_failures_total",
			Help:      "Total number of ChunkSink batches that failed permanently",
		}),
		SystemStartTime: autoGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_start_time_seconds",
			Help:      "Unix timestamp when the process started",
		}),
	}
}

// RecordFileScanned increments the scanned-files counter.
func (m *MetricsCollector) RecordFileScanned() {
	m.FilesScannedTotal.Inc()
}

// RecordFileSkipped increments the skipped-files counter for a reason.
func (m *MetricsCollector) RecordFileSkipped(reason string) {
	m.FilesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordChunkEmitted increments the emitted-chunks counter for a chunk type.
func (m *MetricsCollector) RecordChunkEmitted(chunkType string) {
	m.ChunksEmittedTotal.WithLabelValues(chunkType).Inc()
}

// RecordCacheHit increments the cache-hit counter.
func (m *MetricsCollector) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache-miss counter.
func (m *MetricsCollector) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction increments the eviction counter by the given count.
func (m *MetricsCollector) RecordCacheEviction(count int) {
	m.CacheEvictionsTotal.Add(float64(count))
}

// SetDispatcherQueueDepth sets the current dispatcher queue depth gauge.
func (m *MetricsCollector) SetDispatcherQueueDepth(depth int) {
	m.DispatcherQueueDepth.Set(float64(depth))
}

// RecordDispatcherFile records the duration of one file's dispatch.
func (m *MetricsCollector) RecordDispatcherFile(language string, d time.Duration) {
	m.DispatcherFileDur.WithLabelValues(language).Observe(d.Seconds())
}

// RecordDispatcherFailure records a per-file dispatch failure by error type.
func (m *MetricsCollector) RecordDispatcherFailure(errorType string) {
	m.DispatcherFailures.WithLabelValues(errorType).Inc()
}

// RecordRouterBatch records the duration of one ChunkSink batch call.
func (m *MetricsCollector) RecordRouterBatch(d time.Duration) {
	m.RouterBatchDuration.Observe(d.Seconds())
}

// RecordRouterRetry increments the router retry counter.
func (m *MetricsCollector) RecordRouterRetry() {
	m.RouterRetriesTotal.Inc()
}

// RecordRouterFailure increments the router permanent-failure counter.
func (m *MetricsCollector) RecordRouterFailure() {
	m.RouterFailuresTotal.Inc()
}

// SetSystemStartTime sets the system start time gauge.
func (m *MetricsCollector) SetSystemStartTime(startTime time.Time) {
	m.SystemStartTime.Set(float64(startTime.Unix()))
}
