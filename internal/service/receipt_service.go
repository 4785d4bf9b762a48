package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/repository"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

type receiptStore interface {
	Create(ctx context.Context, receipt *models.Receipt) error
	GetByID(ctx context.Context, id string) (*models.Receipt, error)
	ListByPeriod(ctx context.Context, internshipID string, period models.Period) ([]models.Receipt, error)
	List(ctx context.Context, filter models.ReceiptFilter) ([]models.Receipt, int, error)
	UpdateDetails(ctx context.Context, id string, amount *float64, description string, at time.Time) (*models.Receipt, error)
	Transition(ctx context.Context, id string, from, to models.ReceiptStatus, reason *string, actorID string, at time.Time) (*models.Receipt, error)
	Delete(ctx context.Context, id string) error
	CountByFileRef(ctx context.Context, ref string) (int, error)
}

type internshipReader interface {
	GetByID(ctx context.Context, id string) (*models.Internship, error)
}

type blobRemover interface {
	Delete(ref string) error
}

type uploadRegistry interface {
	GetByRef(ctx context.Context, ref string) (*models.ReceiptFile, error)
	Forget(ctx context.Context, ref string) error
}

// ReceiptServiceOption configures optional collaborators.
type ReceiptServiceOption func(*ReceiptService)

// WithReceiptClock overrides the clock and the timezone used to derive "today".
func WithReceiptClock(now func() time.Time, loc *time.Location) ReceiptServiceOption {
	return func(s *ReceiptService) {
		if now != nil {
			s.now = now
		}
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithReceiptCache invalidates cached reconciliation reports after every write.
func WithReceiptCache(cache *CacheService) ReceiptServiceOption {
	return func(s *ReceiptService) { s.cache = cache }
}

// WithReceiptMetrics records submission and transition counters.
func WithReceiptMetrics(metrics *MetricsService) ReceiptServiceOption {
	return func(s *ReceiptService) { s.metrics = metrics }
}

// WithBlobRemover removes stored documents when their receipt is deleted.
func WithBlobRemover(blobs blobRemover) ReceiptServiceOption {
	return func(s *ReceiptService) { s.blobs = blobs }
}

// WithUploadRegistry restricts submissions to documents the actor uploaded.
func WithUploadRegistry(uploads uploadRegistry) ReceiptServiceOption {
	return func(s *ReceiptService) { s.uploads = uploads }
}

// ReceiptService implements submission and the approval state machine.
type ReceiptService struct {
	repo        receiptStore
	internships internshipReader
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
	cache       *CacheService
	metrics     *MetricsService
	blobs       blobRemover
	uploads     uploadRegistry
	now         func() time.Time
	loc         *time.Location
}

// NewReceiptService constructs the service.
func NewReceiptService(repo receiptStore, internships internshipReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...ReceiptServiceOption) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ReceiptService{
		repo:        repo,
		internships: internships,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates the period, resolves duplicates for the period and stores a
// new PENDING receipt. A period that already holds receipts needs
// ConfirmedSupplementary; without it the caller gets the prior count back.
func (s *ReceiptService) Submit(ctx context.Context, req dto.SubmitReceiptRequest, actor Actor) (*models.Receipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipt payload")
	}
	period := models.Period{Month: req.Month, Year: req.Year}

	internship, err := s.loadInternship(ctx, req.InternshipID)
	if err != nil {
		return nil, err
	}
	if !canActOnInternship(internship, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot submit receipts for this internship")
	}

	if err := ValidatePeriod(internship, period, s.today()); err != nil {
		s.metrics.RecordSubmission("rejected_period")
		return nil, err
	}

	existing, err := s.repo.ListByPeriod(ctx, internship.ID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipts for period")
	}
	conflict := DetectConflict(existing)
	switch {
	case conflict.Kind == ConflictAlreadyApproved:
		s.metrics.RecordSubmission("already_approved")
		return nil, appErrors.Clone(appErrors.ErrPeriodAlreadyApproved, "")
	case conflict.Kind == ConflictRequiresConfirmation && !req.ConfirmedSupplementary:
		s.metrics.RecordSubmission("confirmation_required")
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, map[string]interface{}{"priorCount": conflict.PriorCount})
	}

	if err := s.checkFileRef(ctx, req.FileRef, actor); err != nil {
		return nil, err
	}

	receipt := &models.Receipt{
		InternshipID: internship.ID,
		PeriodMonth:  period.Month,
		PeriodYear:   period.Year,
		Amount:       req.Amount,
		Description:  strings.TrimSpace(req.Description),
		FileRef:      req.FileRef,
		Status:       models.ReceiptStatusPending,
		UploadedBy:   actor.UserID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, receipt); err != nil {
		switch {
		case errors.Is(err, repository.ErrPeriodClosed):
			s.metrics.RecordSubmission("already_approved")
			return nil, appErrors.Clone(appErrors.ErrPeriodAlreadyApproved, "")
		case errors.Is(err, repository.ErrFileRefInUse):
			return nil, appErrors.Clone(appErrors.ErrFileRefInUse, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create receipt")
	}

	if receipt.IsSupplementary() {
		s.metrics.RecordSubmission("supplementary")
	} else {
		s.metrics.RecordSubmission("fresh")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReceiptCreate, receipt.ID, nil, receipt.Snapshot())
	s.invalidateReconciliation(ctx)
	return receipt, nil
}

// Get returns one receipt visible to the actor.
func (s *ReceiptService) Get(ctx context.Context, id string, actor Actor) (*models.Receipt, error) {
	receipt, err := s.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, receipt, actor); err != nil {
		return nil, err
	}
	return receipt, nil
}

// List returns receipts matching the query, scoped to what the actor may see.
func (s *ReceiptService) List(ctx context.Context, query dto.ReceiptQuery, actor Actor) ([]models.Receipt, *models.Pagination, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown receipt status")
	}
	filter := models.ReceiptFilter{
		InternshipID: query.InternshipID,
		Status:       query.Status,
		Month:        query.Month,
		Year:         query.Year,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherUserID = actor.UserID
	case models.RoleStudent:
		filter.StudentUserID = actor.UserID
	}

	receipts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list receipts")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return receipts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update edits amount or description of a PENDING receipt.
func (s *ReceiptService) Update(ctx context.Context, id string, req dto.UpdateReceiptRequest, actor Actor) (*models.Receipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipt payload")
	}
	current, err := s.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && current.UploadedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the uploader or an administrator may edit this receipt")
	}
	if err := editGuard(current); err != nil {
		return nil, err
	}

	amount := current.Amount
	if req.Amount != nil {
		amount = req.Amount
	}
	description := current.Description
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}

	updated, err := s.repo.UpdateDetails(ctx, id, amount, description, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.staleWrite(ctx, id, editGuard)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update receipt")
	}

	s.metrics.RecordTransition("update")
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReceiptUpdate, id, current.Snapshot(), updated.Snapshot())
	return updated, nil
}

// Approve moves a PENDING receipt to APPROVED, keeping at most one approved receipt per period.
func (s *ReceiptService) Approve(ctx context.Context, id string, actor Actor) (*models.Receipt, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may approve receipts")
	}
	current, err := s.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transitionGuard(current); err != nil {
		return nil, err
	}

	siblings, err := s.repo.ListByPeriod(ctx, current.InternshipID, current.Period())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipts for period")
	}
	for i := range siblings {
		if siblings[i].ID != id && siblings[i].Status == models.ReceiptStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrPeriodAlreadyApproved, "")
		}
	}

	updated, err := s.repo.Transition(ctx, id, models.ReceiptStatusPending, models.ReceiptStatusApproved, nil, actor.UserID, s.now().UTC())
	if err != nil {
		return nil, s.transitionFailure(ctx, id, err)
	}

	s.metrics.RecordTransition("approve")
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReceiptApprove, id, current.Snapshot(), updated.Snapshot())
	s.invalidateReconciliation(ctx)
	return updated, nil
}

// Reject moves a PENDING receipt to REJECTED with a mandatory reason.
func (s *ReceiptService) Reject(ctx context.Context, id string, reason string, actor Actor) (*models.Receipt, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may reject receipts")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "")
	}
	current, err := s.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transitionGuard(current); err != nil {
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, id, models.ReceiptStatusPending, models.ReceiptStatusRejected, &reason, actor.UserID, s.now().UTC())
	if err != nil {
		return nil, s.transitionFailure(ctx, id, err)
	}

	s.metrics.RecordTransition("reject")
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReceiptReject, id, current.Snapshot(), updated.Snapshot())
	s.invalidateReconciliation(ctx)
	return updated, nil
}

// Delete removes a PENDING or REJECTED receipt and, best effort, its stored document.
func (s *ReceiptService) Delete(ctx context.Context, id string, actor Actor) error {
	current, err := s.loadReceipt(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdmin() && current.UploadedBy != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader or an administrator may delete this receipt")
	}
	if err := deleteGuard(current); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.staleWrite(ctx, id, deleteGuard)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete receipt")
	}

	s.removeDocument(ctx, current)
	s.metrics.RecordTransition("delete")
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReceiptDelete, id, current.Snapshot(), nil)
	s.invalidateReconciliation(ctx)
	return nil
}

// checkFileRef accepts only a document the actor uploaded that no receipt holds yet.
// Administrators may attach any recorded upload.
func (s *ReceiptService) checkFileRef(ctx context.Context, ref string, actor Actor) error {
	if s.uploads != nil {
		file, err := s.uploads.GetByRef(ctx, ref)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrUnknownFileRef, "")
		case err != nil:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt document")
		case file.UploadedBy != actor.UserID && !actor.Role.IsAdmin():
			return appErrors.Clone(appErrors.ErrUnknownFileRef, "")
		}
	}
	count, err := s.repo.CountByFileRef(ctx, ref)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check receipt document")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrFileRefInUse, "")
	}
	return nil
}

// removeDocument deletes the stored document of a deleted receipt unless
// another receipt still points at it. Failures are logged only.
func (s *ReceiptService) removeDocument(ctx context.Context, deleted *models.Receipt) {
	if s.blobs == nil || deleted.FileRef == "" {
		return
	}
	fields := []zap.Field{zap.String("receipt_id", deleted.ID), zap.String("file_ref", deleted.FileRef)}
	count, err := s.repo.CountByFileRef(ctx, deleted.FileRef)
	if err != nil {
		s.logger.Warn("kept receipt document; reference check failed", append(fields, zap.Error(err))...)
		return
	}
	if count > 0 {
		s.logger.Info("kept receipt document still referenced", append(fields, zap.Int("references", count))...)
		return
	}
	if err := s.blobs.Delete(deleted.FileRef); err != nil {
		s.logger.Warn("failed to remove receipt document", append(fields, zap.Error(err))...)
		return
	}
	if s.uploads != nil {
		if err := s.uploads.Forget(ctx, deleted.FileRef); err != nil {
			s.logger.Warn("failed to drop upload record", append(fields, zap.Error(err))...)
		}
	}
}

// transitionFailure maps a failed conditional update onto the rule that now blocks it.
func (s *ReceiptService) transitionFailure(ctx context.Context, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateApproval):
		return appErrors.Clone(appErrors.ErrPeriodAlreadyApproved, "")
	case errors.Is(err, sql.ErrNoRows):
		return s.staleWrite(ctx, id, transitionGuard)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update receipt status")
	}
}

// staleWrite re-reads a receipt whose conditional write matched no row and
// reports why, using the same guard the operation checked up front.
func (s *ReceiptService) staleWrite(ctx context.Context, id string, guard func(*models.Receipt) error) error {
	latest, err := s.loadReceipt(ctx, id)
	if err != nil {
		return err
	}
	if guardErr := guard(latest); guardErr != nil {
		return guardErr
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "receipt changed concurrently; reload and retry")
}

func (s *ReceiptService) authorizeRead(ctx context.Context, receipt *models.Receipt, actor Actor) error {
	if actor.Role.IsAdmin() || receipt.UploadedBy == actor.UserID {
		return nil
	}
	internship, err := s.loadInternship(ctx, receipt.InternshipID)
	if err != nil {
		return err
	}
	if canActOnInternship(internship, actor) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
}

func (s *ReceiptService) loadReceipt(ctx context.Context, id string) (*models.Receipt, error) {
	receipt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}
	return receipt, nil
}

func (s *ReceiptService) loadInternship(ctx context.Context, id string) (*models.Internship, error) {
	internship, err := s.internships.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "internship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load internship")
	}
	return internship, nil
}

func (s *ReceiptService) today() time.Time {
	return s.now().In(s.loc)
}

func (s *ReceiptService) invalidateReconciliation(ctx context.Context) {
	s.cache.InvalidateReports(ctx)
}

func canActOnInternship(internship *models.Internship, actor Actor) bool {
	switch {
	case actor.Role.IsAdmin():
		return true
	case actor.Role == models.RoleTeacher:
		return internship.CoordinatedBy(actor.UserID)
	case actor.Role == models.RoleStudent:
		return internship.BelongsToStudent(actor.UserID)
	default:
		return false
	}
}

func transitionGuard(r *models.Receipt) error {
	switch r.Status {
	case models.ReceiptStatusPending:
		return nil
	case models.ReceiptStatusApproved:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "receipt is already approved")
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "receipt was already rejected")
	}
}

func editGuard(r *models.Receipt) error {
	switch {
	case r.Status == models.ReceiptStatusApproved:
		return appErrors.Clone(appErrors.ErrImmutableApproved, "")
	case !r.Status.Editable():
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending receipts can be edited")
	}
	return nil
}

func deleteGuard(r *models.Receipt) error {
	if !r.Status.Deletable() {
		return appErrors.Clone(appErrors.ErrImmutableApproved, "")
	}
	return nil
}
