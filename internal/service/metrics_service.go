package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/dekont-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	receiptSubmissions  *prometheus.CounterVec
	receiptTransitions  *prometheus.CounterVec
	analysisDuration    *prometheus.HistogramVec
	analysisReliability prometheus.Histogram
	batchSize           prometheus.Histogram
	batchItems          *prometheus.CounterVec
	missingReceipts     *prometheus.GaugeVec
	remindersQueued     *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	analysisCount        uint64
	analysisFailCount    uint64
	missingCount         int64
}

// NewMetricsService registers the HTTP, cache and receipt collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	receiptSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_submissions_total",
		Help: "Receipt submissions by outcome",
	}, []string{"outcome"})

	receiptTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_transitions_total",
		Help: "Receipt status changes and deletions",
	}, []string{"action"})

	analysisDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receipt_analysis_duration_seconds",
		Help:    "Latency of calls to the analysis provider",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
	}, []string{"provider", "outcome"})

	analysisReliability := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipt_analysis_reliability",
		Help:    "Reliability scores returned by the analysis provider",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipt_batch_size",
		Help:    "Number of receipts requested per batch analysis",
		Buckets: []float64{1, 2, 5, 10, 15, 20},
	})

	batchItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_batch_items_total",
		Help: "Batch analysis items by outcome",
	}, []string{"status"})

	missingReceipts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "receipts_missing",
		Help: "Internships without an addressed receipt for the last closed period",
	}, []string{"tier"})

	remindersQueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_reminders_total",
		Help: "Reminders delivered to the outbox",
	}, []string{"tier", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		receiptSubmissions, receiptTransitions, analysisDuration, analysisReliability, batchSize, batchItems,
		missingReceipts, remindersQueued, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		receiptSubmissions:  receiptSubmissions,
		receiptTransitions:  receiptTransitions,
		analysisDuration:    analysisDuration,
		analysisReliability: analysisReliability,
		batchSize:           batchSize,
		batchItems:          batchItems,
		missingReceipts:     missingReceipts,
		remindersQueued:     remindersQueued,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSubmission counts a submission outcome such as fresh, supplementary or confirmation_required.
func (m *MetricsService) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.receiptSubmissions.WithLabelValues(outcome).Inc()
}

// RecordTransition counts approve, reject, update and delete actions.
func (m *MetricsService) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.receiptTransitions.WithLabelValues(action).Inc()
}

// ObserveAnalysis records one provider call. reliability is ignored on failure.
func (m *MetricsService) ObserveAnalysis(provider string, duration time.Duration, reliability float64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		atomic.AddUint64(&m.analysisFailCount, 1)
	} else {
		m.analysisReliability.Observe(reliability)
	}
	atomic.AddUint64(&m.analysisCount, 1)
	m.analysisDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
}

// ObserveBatch records the size and per-item outcomes of a batch run.
func (m *MetricsService) ObserveBatch(summary models.BatchSummary) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(summary.TotalRequested))
	m.batchItems.WithLabelValues(string(models.BatchItemSucceeded)).Add(float64(summary.Successful))
	m.batchItems.WithLabelValues(string(models.BatchItemFailed)).Add(float64(summary.Failed))
	m.batchItems.WithLabelValues(string(models.BatchItemSkipped)).Add(float64(summary.Skipped))
}

// SetMissingReceipts publishes the size of the latest reconciliation report.
func (m *MetricsService) SetMissingReceipts(tier models.UrgencyTier, count int) {
	if m == nil {
		return
	}
	m.missingReceipts.Reset()
	m.missingReceipts.WithLabelValues(string(tier)).Set(float64(count))
	atomic.StoreInt64(&m.missingCount, int64(count))
}

// RecordReminder counts reminders by tier and whether they were new or already delivered.
func (m *MetricsService) RecordReminder(tier models.UrgencyTier, created bool) {
	if m == nil {
		return
	}
	result := "duplicate"
	if created {
		result = "created"
	}
	m.remindersQueued.WithLabelValues(string(tier), result).Inc()
}

// Snapshot returns aggregated metrics for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		AnalysisCalls:            atomic.LoadUint64(&m.analysisCount),
		AnalysisFailures:         atomic.LoadUint64(&m.analysisFailCount),
		MissingReceipts:          int(atomic.LoadInt64(&m.missingCount)),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
