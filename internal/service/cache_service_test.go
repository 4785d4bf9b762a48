package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries  map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	patterns []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			delete(r.entries, key)
		}
	}
	return nil
}

func TestCacheServiceReportRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	day := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	key := ReportKey(day, "all")
	assert.Equal(t, "reconciliation:2024-06-03:all", key)

	_, hit := cache.Report(context.Background(), key)
	assert.False(t, hit)

	cache.StoreReport(context.Background(), key, &models.ReconciliationReport{
		Period:  models.Period{Month: 5, Year: 2024},
		Tier:    models.UrgencyCritical,
		Missing: []models.MissingReceipt{{InternshipID: "i-1"}},
	}, 0)
	assert.Equal(t, time.Minute, repo.ttls[key])

	report, hit := cache.Report(context.Background(), key)
	require.True(t, hit)
	assert.Equal(t, models.UrgencyCritical, report.Tier)
	require.Len(t, report.Missing, 1)

	cache.InvalidateReports(context.Background())
	assert.Equal(t, []string{"reconciliation:*"}, repo.patterns)
	_, hit = cache.Report(context.Background(), key)
	assert.False(t, hit)
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	cache := NewCacheService(repo, nil, 0, nil, true)

	_, hit := cache.Report(context.Background(), "reconciliation:x")
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)

	cache.StoreReport(context.Background(), "k", &models.ReconciliationReport{}, 0)
	assert.Empty(t, repo.entries)

	var nilCache *CacheService
	_, hit := nilCache.Report(context.Background(), "k")
	assert.False(t, hit)
	nilCache.InvalidateReports(context.Background())
}
