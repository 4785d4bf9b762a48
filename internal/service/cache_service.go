package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

const (
	reportCachePrefix  = "reconciliation:"
	reportCachePattern = reportCachePrefix + "*"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService keeps reconciliation reports per day and scope. A nil or
// disabled service behaves as a permanent miss.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// ReportKey names the cached report for a calendar day and scope label.
func ReportKey(day time.Time, scope string) string {
	return reportCachePrefix + day.Format("2006-01-02") + ":" + scope
}

// Report returns the cached report stored under key, if any. Backend errors
// are logged and reported as a miss so callers fall through to a fresh scan.
func (s *CacheService) Report(ctx context.Context, key string) (*models.ReconciliationReport, bool) {
	if !s.Enabled() {
		return nil, false
	}
	var report models.ReconciliationReport
	start := time.Now()
	err := s.repo.Get(ctx, key, &report)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return &report, true
	case !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// StoreReport caches report under key. ttl <= 0 uses the default.
func (s *CacheService) StoreReport(ctx context.Context, key string, report *models.ReconciliationReport, ttl time.Duration) {
	if !s.Enabled() || report == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, report, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateReports drops every cached report. Receipt writes call this so the
// next reconciliation read reflects them.
func (s *CacheService) InvalidateReports(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, reportCachePattern); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}
