package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"math"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/pkg/analyzer"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

type analysisStore interface {
	GetByID(ctx context.Context, id string) (*models.Receipt, error)
	UpdateAnalysis(ctx context.Context, id string, analysis models.AnalysisResult, at time.Time) (*models.Receipt, error)
}

type documentOpener interface {
	Open(ref string) (*os.File, error)
}

// AnalysisConfig bounds a single provider call.
type AnalysisConfig struct {
	Timeout           time.Duration
	MaxImageDimension int
	MaxFileSizeBytes  int64
}

// AnalysisService sends one receipt image to the analysis provider and stores
// the normalised verdict on the receipt. It never retries.
type AnalysisService struct {
	repo     analysisStore
	files    documentOpener
	provider analyzer.Analyzer
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AnalysisConfig
	now      func() time.Time
}

// NewAnalysisService constructs the gateway. A nil provider makes every call fail with ANALYSIS_DISABLED.
func NewAnalysisService(repo analysisStore, files documentOpener, provider analyzer.Analyzer, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg AnalysisConfig) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	return &AnalysisService{
		repo:     repo,
		files:    files,
		provider: provider,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Enabled reports whether a provider is configured.
func (s *AnalysisService) Enabled() bool {
	return s != nil && s.provider != nil
}

// Analyze runs the provider on the receipt's document and overwrites any previous analysis.
func (s *AnalysisService) Analyze(ctx context.Context, id string, actor Actor) (*models.Receipt, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrAnalysisDisabled, "")
	}
	receipt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status == models.ReceiptStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrImmutableApproved, "approved receipts cannot be re-analyzed")
	}

	image, err := s.readImage(receipt.FileRef)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	started := time.Now()
	raw, err := s.provider.Analyze(callCtx, image)
	if err != nil {
		s.metrics.ObserveAnalysis(s.provider.Name(), time.Since(started), 0, err)
		s.logger.Warn("analysis provider call failed", zap.String("receipt_id", id), zap.String("provider", s.provider.Name()), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrAnalysisService.Code, appErrors.ErrAnalysisService.Status, appErrors.ErrAnalysisService.Message)
	}
	result := NormaliseAnalysis(raw, s.provider.Name(), s.now().UTC())
	s.metrics.ObserveAnalysis(s.provider.Name(), time.Since(started), result.Reliability, nil)

	updated, err := s.repo.UpdateAnalysis(ctx, id, result, result.AnalyzedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, loadErr := s.load(ctx, id); loadErr != nil {
				return nil, loadErr
			}
			return nil, appErrors.Clone(appErrors.ErrImmutableApproved, "receipt was approved while it was being analyzed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store analysis")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReceiptAnalyze, id, nil, map[string]interface{}{
		"reliability":    result.Reliability,
		"recommendation": result.Recommendation,
		"provider":       result.Provider,
	})
	return updated, nil
}

// readImage loads the document and returns it as a normalised PNG. Non-image
// documents are refused before anything leaves the process.
func (s *AnalysisService) readImage(ref string) ([]byte, error) {
	if s.files == nil || ref == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt document not found")
	}
	f, err := s.files.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open receipt document")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt document")
	}
	if int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipt document exceeds the maximum size")
	}

	mime := mimetype.Detect(data).String()
	if !analyzer.IsImageMIME(mime) {
		return nil, appErrors.WithDetails(appErrors.ErrUnsupportedFileType, map[string]interface{}{"mimeType": mime})
	}
	image, err := analyzer.PrepareImage(data, mime, s.cfg.MaxImageDimension)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFileType.Code, appErrors.ErrUnsupportedFileType.Status, "receipt image could not be decoded")
	}
	return image, nil
}

func (s *AnalysisService) load(ctx context.Context, id string) (*models.Receipt, error) {
	receipt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}
	return receipt, nil
}

// NormaliseAnalysis maps a provider response onto the closed AnalysisResult
// shape. Scores above 1 are read as percentages and the result is clamped to [0,1].
func NormaliseAnalysis(raw *analyzer.Result, provider string, at time.Time) models.AnalysisResult {
	result := models.AnalysisResult{
		SecurityFlags:  []models.SecurityFlag{},
		Recommendation: models.RecommendationManualReview,
		AnalyzedAt:     at,
		Provider:       provider,
	}
	if raw == nil {
		return result
	}

	reliability := float64(raw.Reliability)
	if math.IsNaN(reliability) || math.IsInf(reliability, 0) {
		reliability = 0
	}
	if reliability > 1 {
		reliability /= 100
	}
	result.Reliability = math.Max(0, math.Min(1, reliability))
	result.Recommendation = models.ParseRecommendation(raw.Recommendation)

	for _, f := range raw.SecurityFlags {
		result.SecurityFlags = append(result.SecurityFlags, models.SecurityFlag{
			Type:     f.Type,
			Message:  f.Message,
			Severity: models.ParseSeverity(f.Severity),
		})
	}

	fields := raw.ExtractedFields
	result.ExtractedFields = &models.ExtractedFields{
		SenderName:      fields.SenderName,
		ReceiverName:    fields.ReceiverName,
		IBAN:            fields.IBAN,
		BankName:        fields.BankName,
		Amount:          fields.Amount,
		Currency:        fields.Currency,
		TransactionDate: fields.TransactionDate,
		Description:     fields.Description,
	}
	result.Validation = &models.AnalysisValidation{
		IsBankReceipt: raw.Validation.IsBankReceipt,
		IsLegible:     raw.Validation.IsLegible,
		HasStamp:      raw.Validation.HasStamp,
		Issues:        raw.Validation.Issues,
	}
	result.RawText = raw.RawText
	return result
}
