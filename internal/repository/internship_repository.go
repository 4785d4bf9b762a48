package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dekont-api/internal/models"
)

const internshipSelect = `SELECT i.id, i.student_id, i.company_id, i.teacher_id, i.start_date, i.end_date,
	i.termination_date, i.status,
	s.full_name AS student_name, s.user_id AS student_user_id, s.class_name, s.enrollment_number,
	c.name AS company_name, t.full_name AS teacher_name, t.user_id AS teacher_user_id
FROM internships i
JOIN students s ON s.id = i.student_id
JOIN companies c ON c.id = i.company_id
JOIN teachers t ON t.id = i.teacher_id`

// InternshipRepository reads internships with their student, company and teacher names.
type InternshipRepository struct {
	db *sqlx.DB
}

// NewInternshipRepository constructs the repository.
func NewInternshipRepository(db *sqlx.DB) *InternshipRepository {
	return &InternshipRepository{db: db}
}

// GetByID fetches one internship. sql.ErrNoRows is returned unwrapped.
func (r *InternshipRepository) GetByID(ctx context.Context, id string) (*models.Internship, error) {
	var internship models.Internship
	if err := r.db.GetContext(ctx, &internship, internshipSelect+` WHERE i.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get internship: %w", err)
	}
	return &internship, nil
}

// ListCollecting returns internships that may owe a receipt for period: started
// before the period ends and either active or closed on/after its first day.
func (r *InternshipRepository) ListCollecting(ctx context.Context, period models.Period, filter models.InternshipFilter) ([]models.Internship, error) {
	firstDay := period.FirstDay(nil)
	nextFirstDay := period.Next().FirstDay(nil)

	args := []interface{}{nextFirstDay, firstDay}
	conditions := []string{
		"i.start_date < $1",
		`(i.status = 'ACTIVE' OR (CASE WHEN i.status = 'TERMINATED'
			THEN COALESCE(i.termination_date, i.end_date)
			ELSE COALESCE(i.end_date, i.termination_date) END) >= $2)`,
	}
	if filter.TeacherUserID != "" {
		args = append(args, filter.TeacherUserID)
		conditions = append(conditions, fmt.Sprintf("t.user_id = $%d", len(args)))
	}
	if filter.StudentUserID != "" {
		args = append(args, filter.StudentUserID)
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)))
	}

	query := internshipSelect + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY s.class_name, s.full_name"
	var internships []models.Internship
	if err := r.db.SelectContext(ctx, &internships, query, args...); err != nil {
		return nil, fmt.Errorf("list collecting internships: %w", err)
	}
	return internships, nil
}
