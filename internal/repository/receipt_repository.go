package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/dekont-api/internal/models"
)

const (
	pqUniqueViolation        = "23505"
	approvedPeriodConstraint = "uq_receipts_one_approved_per_period"
	fileRefConstraint        = "uq_receipts_file_ref"
)

var (
	// ErrDuplicateApproval is returned when a transition would give a period a second APPROVED receipt.
	ErrDuplicateApproval = errors.New("period already has an approved receipt")
	// ErrPeriodClosed is returned by Create when the period gained an APPROVED receipt.
	ErrPeriodClosed = errors.New("period is closed by an approved receipt")
	// ErrFileRefInUse is returned by Create when another receipt already points at the document.
	ErrFileRefInUse = errors.New("file reference already attached to a receipt")
)

const receiptColumns = `id, internship_id, period_month, period_year, amount, description, file_ref, status,
	rejection_reason, uploaded_by, supplementary_index, analysis, decided_by, decided_at, created_at, updated_at`

const receiptColumnsAliased = `r.id, r.internship_id, r.period_month, r.period_year, r.amount, r.description, r.file_ref, r.status,
	r.rejection_reason, r.uploaded_by, r.supplementary_index, r.analysis, r.decided_by, r.decided_at, r.created_at, r.updated_at`

// ReceiptRepository persists receipts. Every mutation touches exactly one row
// and carries its precondition in the WHERE clause.
type ReceiptRepository struct {
	db *sqlx.DB
}

// NewReceiptRepository constructs the repository.
func NewReceiptRepository(db *sqlx.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Create draws the next supplementary index for the receipt's period and
// inserts the row in the same transaction. The sequence upsert locks the
// period row, which approvals also lock, so the approved check in the insert
// cannot race an approval.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *models.Receipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.Status == "" {
		receipt.Status = models.ReceiptStatusPending
	}
	now := time.Now().UTC()
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = now
	}
	receipt.UpdatedAt = receipt.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create receipt: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const seqQuery = `INSERT INTO receipt_period_sequences (internship_id, period_year, period_month, next_index)
	VALUES ($1, $2, $3, 1)
	ON CONFLICT (internship_id, period_year, period_month)
	DO UPDATE SET next_index = receipt_period_sequences.next_index + 1
	RETURNING next_index - 1`
	if err := tx.GetContext(ctx, &receipt.SupplementaryIndex, seqQuery, receipt.InternshipID, receipt.PeriodYear, receipt.PeriodMonth); err != nil {
		return fmt.Errorf("next supplementary index: %w", err)
	}

	const insertQuery = `INSERT INTO receipts
	(id, internship_id, period_month, period_year, amount, description, file_ref, status, rejection_reason,
	 uploaded_by, supplementary_index, analysis, decided_by, decided_at, created_at, updated_at)
	SELECT :id, :internship_id, :period_month, :period_year, :amount, :description, :file_ref, :status, :rejection_reason,
	 :uploaded_by, :supplementary_index, :analysis, :decided_by, :decided_at, :created_at, :updated_at
	WHERE NOT EXISTS (
		SELECT 1 FROM receipts
		WHERE internship_id = :internship_id AND period_year = :period_year AND period_month = :period_month
		AND status = 'APPROVED'
	)`
	res, err := tx.NamedExecContext(ctx, insertQuery, receipt)
	if err != nil {
		if isUniqueViolation(err, fileRefConstraint) {
			return ErrFileRefInUse
		}
		return fmt.Errorf("create receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create receipt rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPeriodClosed
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create receipt: %w", err)
	}
	return nil
}

// GetByID fetches a receipt. sql.ErrNoRows is returned unwrapped for unknown ids.
func (r *ReceiptRepository) GetByID(ctx context.Context, id string) (*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	var receipt models.Receipt
	if err := r.db.GetContext(ctx, &receipt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return &receipt, nil
}

// ListByPeriod returns every receipt currently stored for (internship, period), oldest first.
func (r *ReceiptRepository) ListByPeriod(ctx context.Context, internshipID string, period models.Period) ([]models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts
	WHERE internship_id = $1 AND period_year = $2 AND period_month = $3
	ORDER BY supplementary_index ASC`
	var receipts []models.Receipt
	if err := r.db.SelectContext(ctx, &receipts, query, internshipID, period.Year, period.Month); err != nil {
		return nil, fmt.Errorf("list receipts by period: %w", err)
	}
	return receipts, nil
}

// List returns receipts matching the filter with the total count, newest first.
func (r *ReceiptRepository) List(ctx context.Context, filter models.ReceiptFilter) ([]models.Receipt, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	from := ` FROM receipts r JOIN internships i ON i.id = r.internship_id`

	if filter.TeacherUserID != "" {
		from += ` JOIN teachers t ON t.id = i.teacher_id`
		args = append(args, filter.TeacherUserID)
		conditions = append(conditions, fmt.Sprintf("t.user_id = $%d", len(args)))
	}
	if filter.StudentUserID != "" {
		from += ` JOIN students s ON s.id = i.student_id`
		args = append(args, filter.StudentUserID)
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)))
	}
	if filter.InternshipID != "" {
		args = append(args, filter.InternshipID)
		conditions = append(conditions, fmt.Sprintf("r.internship_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.Month > 0 {
		args = append(args, filter.Month)
		conditions = append(conditions, fmt.Sprintf("r.period_month = $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("r.period_year = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s%s%s ORDER BY r.created_at DESC LIMIT %d OFFSET %d", receiptColumnsAliased, from, where, pageSize, (page-1)*pageSize)

	var receipts []models.Receipt
	if err := r.db.SelectContext(ctx, &receipts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list receipts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count receipts: %w", err)
	}
	return receipts, total, nil
}

// UpdateDetails edits amount and description of a PENDING receipt.
// sql.ErrNoRows means the receipt is missing or no longer pending.
func (r *ReceiptRepository) UpdateDetails(ctx context.Context, id string, amount *float64, description string, at time.Time) (*models.Receipt, error) {
	query := `UPDATE receipts SET amount = $2, description = $3, updated_at = $4
	WHERE id = $1 AND status = 'PENDING'
	RETURNING ` + receiptColumns
	var receipt models.Receipt
	if err := r.db.GetContext(ctx, &receipt, query, id, amount, description, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update receipt details: %w", err)
	}
	return &receipt, nil
}

// Transition moves a receipt from one status to another only if it still holds
// the expected status. sql.ErrNoRows means the precondition no longer holds.
// Approvals first lock the period's sequence row so they serialise with Create.
func (r *ReceiptRepository) Transition(ctx context.Context, id string, from, to models.ReceiptStatus, reason *string, actorID string, at time.Time) (*models.Receipt, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition receipt: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if to == models.ReceiptStatusApproved {
		const lockQuery = `SELECT s.next_index FROM receipt_period_sequences s
		JOIN receipts r ON r.internship_id = s.internship_id AND r.period_year = s.period_year AND r.period_month = s.period_month
		WHERE r.id = $1
		FOR UPDATE OF s`
		if _, err := tx.ExecContext(ctx, lockQuery, id); err != nil {
			return nil, fmt.Errorf("lock receipt period: %w", err)
		}
	}

	query := `UPDATE receipts
	SET status = $2, rejection_reason = $3, decided_by = $4, decided_at = $5, updated_at = $5
	WHERE id = $1 AND status = $6
	RETURNING ` + receiptColumns
	var receipt models.Receipt
	if err := tx.GetContext(ctx, &receipt, query, id, to, reason, actorID, at, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if isUniqueViolation(err, approvedPeriodConstraint) {
			return nil, ErrDuplicateApproval
		}
		return nil, fmt.Errorf("transition receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition receipt: %w", err)
	}
	return &receipt, nil
}

// UpdateAnalysis overwrites the stored analysis of a non-approved receipt.
// sql.ErrNoRows means the receipt is missing or already approved.
func (r *ReceiptRepository) UpdateAnalysis(ctx context.Context, id string, analysis models.AnalysisResult, at time.Time) (*models.Receipt, error) {
	query := `UPDATE receipts SET analysis = $2, updated_at = $3
	WHERE id = $1 AND status <> 'APPROVED'
	RETURNING ` + receiptColumns
	var receipt models.Receipt
	if err := r.db.GetContext(ctx, &receipt, query, id, analysis, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update receipt analysis: %w", err)
	}
	return &receipt, nil
}

// Delete removes a non-approved receipt. sql.ErrNoRows means it is missing or approved.
// The period sequence row is left alone so indexes are never reused.
func (r *ReceiptRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM receipts WHERE id = $1 AND status <> 'APPROVED'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByFileRef reports how many receipts point at the stored document ref.
func (r *ReceiptRepository) CountByFileRef(ctx context.Context, ref string) (int, error) {
	const query = `SELECT COUNT(*) FROM receipts WHERE file_ref = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, ref); err != nil {
		return 0, fmt.Errorf("count receipts by file ref: %w", err)
	}
	return count, nil
}

// CountsForPeriod tallies receipts per internship for one period.
func (r *ReceiptRepository) CountsForPeriod(ctx context.Context, period models.Period) ([]models.PeriodStatusCount, error) {
	const query = `SELECT internship_id, period_month, period_year,
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
	COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
	COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected
	FROM receipts WHERE period_year = $1 AND period_month = $2
	GROUP BY internship_id, period_month, period_year`
	var counts []models.PeriodStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, period.Year, period.Month); err != nil {
		return nil, fmt.Errorf("count receipts for period: %w", err)
	}
	return counts, nil
}

// CountsForInternship tallies receipts per period for one internship.
func (r *ReceiptRepository) CountsForInternship(ctx context.Context, internshipID string) ([]models.PeriodStatusCount, error) {
	const query = `SELECT internship_id, period_month, period_year,
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
	COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
	COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected
	FROM receipts WHERE internship_id = $1
	GROUP BY internship_id, period_month, period_year
	ORDER BY period_year, period_month`
	var counts []models.PeriodStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, internshipID); err != nil {
		return nil, fmt.Errorf("count receipts for internship: %w", err)
	}
	return counts, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqUniqueViolation && pqErr.Constraint == constraint
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
