package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

const defaultBatchConcurrency = 4

type receiptAnalyzer interface {
	Analyze(ctx context.Context, id string, actor Actor) (*models.Receipt, error)
}

// BatchAnalysisService drives the analysis gateway over a bounded set of receipts.
type BatchAnalysisService struct {
	gateway     receiptAnalyzer
	concurrency int
	itemTimeout time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewBatchAnalysisService constructs the orchestrator. concurrency is clamped to 1..MaxBatchSize.
func NewBatchAnalysisService(gateway receiptAnalyzer, concurrency int, itemTimeout time.Duration, metrics *MetricsService, logger *zap.Logger) *BatchAnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	if concurrency > models.MaxBatchSize {
		concurrency = models.MaxBatchSize
	}
	if itemTimeout <= 0 {
		itemTimeout = time.Minute
	}
	return &BatchAnalysisService{gateway: gateway, concurrency: concurrency, itemTimeout: itemTimeout, metrics: metrics, logger: logger}
}

// RunBatch analyzes every id with partial-failure tolerance. Cancelling ctx
// stops new items from starting; items already running finish and the summary
// reports the rest as skipped. Ids are processed as given, duplicates included.
func (s *BatchAnalysisService) RunBatch(ctx context.Context, ids []string, actor Actor) (*models.BatchSummary, error) {
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyBatch, "")
	}
	if len(ids) > models.MaxBatchSize {
		return nil, appErrors.WithDetails(appErrors.ErrBatchTooLarge, map[string]interface{}{
			"max":       models.MaxBatchSize,
			"requested": len(ids),
		})
	}

	items := make([]models.BatchItemResult, len(ids))
	sem := semaphore.NewWeighted(int64(s.concurrency))
	var wg sync.WaitGroup
	cancelled := false

	for i, id := range ids {
		if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
			cancelled = true
			for j := i; j < len(ids); j++ {
				items[j] = models.BatchItemResult{ReceiptID: ids[j], Status: models.BatchItemSkipped, Error: "batch cancelled"}
			}
			break
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer sem.Release(1)
			items[i] = s.runItem(ctx, id, actor)
		}(i, id)
	}
	wg.Wait()

	summary := SummariseBatch(items, cancelled)
	s.metrics.ObserveBatch(summary)
	s.logger.Info("batch analysis finished",
		zap.Int("requested", summary.TotalRequested),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("cancelled", summary.Cancelled))
	return &summary, nil
}

// runItem detaches from the caller's cancellation so a started call is not
// torn down mid-flight, but stays bounded by the item timeout.
func (s *BatchAnalysisService) runItem(parent context.Context, id string, actor Actor) models.BatchItemResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.itemTimeout)
	defer cancel()

	receipt, err := s.gateway.Analyze(ctx, id, actor)
	if err != nil {
		appErr := appErrors.FromError(err)
		return models.BatchItemResult{ReceiptID: id, Status: models.BatchItemFailed, ErrorCode: appErr.Code, Error: appErr.Message}
	}
	if receipt == nil || receipt.Analysis == nil {
		return models.BatchItemResult{ReceiptID: id, Status: models.BatchItemFailed, ErrorCode: appErrors.ErrAnalysisService.Code, Error: "analysis missing from receipt"}
	}
	reliability := receipt.Analysis.Reliability
	return models.BatchItemResult{
		ReceiptID:      id,
		Status:         models.BatchItemSucceeded,
		Reliability:    &reliability,
		Recommendation: receipt.Analysis.Recommendation,
	}
}

// SummariseBatch aggregates per-item outcomes. The average covers successful items only.
func SummariseBatch(items []models.BatchItemResult, cancelled bool) models.BatchSummary {
	summary := models.BatchSummary{
		TotalRequested: len(items),
		Cancelled:      cancelled,
		Items:          items,
	}
	var total float64
	for _, item := range items {
		switch item.Status {
		case models.BatchItemSucceeded:
			summary.Successful++
			if item.Reliability != nil {
				total += *item.Reliability
			}
			summary.Recommendations.Add(item.Recommendation)
		case models.BatchItemSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	if summary.Successful > 0 {
		summary.AverageReliability = total / float64(summary.Successful)
	}
	return summary
}
