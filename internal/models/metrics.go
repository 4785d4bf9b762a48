package models

import "time"

// SystemMetrics is a lightweight snapshot of instrumentation counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AnalysisCalls            uint64    `json:"analysis_calls"`
	AnalysisFailures         uint64    `json:"analysis_failures"`
	MissingReceipts          int       `json:"missing_receipts"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
