package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/export"
)

type collectingInternships interface {
	GetByID(ctx context.Context, id string) (*models.Internship, error)
	ListCollecting(ctx context.Context, period models.Period, filter models.InternshipFilter) ([]models.Internship, error)
}

type receiptCounter interface {
	CountsForPeriod(ctx context.Context, period models.Period) ([]models.PeriodStatusCount, error)
	CountsForInternship(ctx context.Context, internshipID string) ([]models.PeriodStatusCount, error)
}

// ReconciliationConfig tunes the scanner.
type ReconciliationConfig struct {
	CacheTTL                  time.Duration
	RejectedCountsAsAddressed bool
	Location                  *time.Location
	Now                       func() time.Time
}

// ReconciliationService runs the missing-receipt scan for the last closed month.
type ReconciliationService struct {
	internships collectingInternships
	receipts    receiptCounter
	cache       *CacheService
	metrics     *MetricsService
	renderer    *export.Renderer
	logger      *zap.Logger
	cfg         ReconciliationConfig
}

// NewReconciliationService constructs the service.
func NewReconciliationService(internships collectingInternships, receipts receiptCounter, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ReconciliationConfig) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReconciliationService{
		internships: internships,
		receipts:    receipts,
		cache:       cache,
		metrics:     metrics,
		renderer:    export.NewRenderer(),
		logger:      logger,
		cfg:         cfg,
	}
}

// Missing returns the report for the actor's scope. Administrators see every
// collecting internship, teachers only the ones they coordinate.
func (s *ReconciliationService) Missing(ctx context.Context, actor Actor) (*models.ReconciliationReport, error) {
	filter, err := reconciliationScope(actor)
	if err != nil {
		return nil, err
	}
	today := s.cfg.Now().In(s.cfg.Location)
	key := ReportKey(today, scopeLabel(filter))
	if cached, hit := s.cache.Report(ctx, key); hit {
		return cached, nil
	}

	report, err := s.scan(ctx, today, filter)
	if err != nil {
		return nil, err
	}
	if filter.TeacherUserID == "" {
		s.metrics.SetMissingReceipts(report.Tier, len(report.Missing))
	}
	s.cache.StoreReport(ctx, key, report, s.cfg.CacheTTL)
	return report, nil
}

// Scan runs an uncached scan over every internship. Used by scheduled reminder dispatch.
func (s *ReconciliationService) Scan(ctx context.Context) (*models.ReconciliationReport, error) {
	report, err := s.scan(ctx, s.cfg.Now().In(s.cfg.Location), models.InternshipFilter{})
	if err != nil {
		return nil, err
	}
	s.metrics.SetMissingReceipts(report.Tier, len(report.Missing))
	return report, nil
}

func (s *ReconciliationService) scan(ctx context.Context, today time.Time, filter models.InternshipFilter) (*models.ReconciliationReport, error) {
	target := TargetPeriod(today)
	internships, err := s.internships.ListCollecting(ctx, target, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load internships")
	}
	counts, err := s.receipts.CountsForPeriod(ctx, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count receipts")
	}
	report := ScanMissing(internships, counts, today, s.cfg.RejectedCountsAsAddressed)
	report.GeneratedAt = s.cfg.Now().UTC()
	s.logger.Debug("reconciliation scan finished",
		zap.String("period", target.String()),
		zap.String("tier", string(report.Tier)),
		zap.Int("considered", report.Considered),
		zap.Int("missing", len(report.Missing)))
	return &report, nil
}

// Compliance lists every closed period one internship still owes.
func (s *ReconciliationService) Compliance(ctx context.Context, internshipID string, actor Actor) (*models.InternshipCompliance, error) {
	internship, err := s.internships.GetByID(ctx, internshipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "internship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load internship")
	}
	if !canActOnInternship(internship, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "internship not found")
	}
	counts, err := s.receipts.CountsForInternship(ctx, internshipID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count receipts")
	}
	result := ComputeCompliance(internship, counts, s.cfg.Now().In(s.cfg.Location), s.cfg.RejectedCountsAsAddressed)
	return &result, nil
}

// ExportFile is a rendered reconciliation report.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Export renders the actor's missing list as csv, pdf or xlsx.
func (s *ReconciliationService) Export(ctx context.Context, rawFormat string, actor Actor) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv, pdf or xlsx")
	}
	report, err := s.Missing(ctx, actor)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Enrollment", "Class", "Company", "Teacher", "Period", "Urgency"},
		Rows:    make([]map[string]string, 0, len(report.Missing)),
	}
	for _, m := range report.Missing {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":    m.StudentName,
			"Enrollment": m.EnrollmentNumber,
			"Class":      m.ClassName,
			"Company":    m.CompanyName,
			"Teacher":    m.TeacherName,
			"Period":     m.Period.String(),
			"Urgency":    string(report.Tier),
		})
	}

	title := fmt.Sprintf("Missing receipts for %s (%s)", report.Period, report.Tier)
	content, err := s.renderer.Render(format, dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("missing-receipts-%s.%s", report.Period, format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func reconciliationScope(actor Actor) (models.InternshipFilter, error) {
	switch {
	case actor.Role.IsAdmin():
		return models.InternshipFilter{}, nil
	case actor.Role == models.RoleTeacher:
		return models.InternshipFilter{TeacherUserID: actor.UserID}, nil
	default:
		return models.InternshipFilter{}, appErrors.Clone(appErrors.ErrForbidden, "reconciliation is limited to staff")
	}
}

func scopeLabel(filter models.InternshipFilter) string {
	if filter.TeacherUserID != "" {
		return "teacher:" + filter.TeacherUserID
	}
	return "all"
}
