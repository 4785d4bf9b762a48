package models

import "time"

// UrgencyTier drives reminder presentation for the most recently closed period.
type UrgencyTier string

const (
	UrgencyCritical UrgencyTier = "CRITICAL"
	UrgencyOverdue  UrgencyTier = "OVERDUE"
	UrgencyNormal   UrgencyTier = "NORMAL"
)

// MissingReceipt is one internship with no addressed receipt for a period.
type MissingReceipt struct {
	InternshipID     string `json:"internship_id"`
	StudentID        string `json:"student_id"`
	StudentName      string `json:"student_name"`
	ClassName        string `json:"class_name"`
	EnrollmentNumber string `json:"enrollment_number"`
	CompanyName      string `json:"company_name"`
	TeacherID        string `json:"teacher_id"`
	TeacherName      string `json:"teacher_name"`
	Period           Period `json:"period"`
}

// ReconciliationReport is the outcome of a missing-receipt scan.
type ReconciliationReport struct {
	Period      Period           `json:"period"`
	Tier        UrgencyTier      `json:"urgency_tier"`
	Today       string           `json:"today"`
	Considered  int              `json:"considered"`
	Missing     []MissingReceipt `json:"missing"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// InternshipCompliance lists every closed period an internship still owes.
type InternshipCompliance struct {
	InternshipID   string      `json:"internship_id"`
	StudentName    string      `json:"student_name"`
	Tier           UrgencyTier `json:"urgency_tier"`
	DuePeriods     int         `json:"due_periods"`
	MissingPeriods []Period    `json:"missing_periods"`
	ApprovedCount  int         `json:"approved_count"`
	PendingCount   int         `json:"pending_count"`
	RejectedCount  int         `json:"rejected_count"`
}

// PeriodStatusCount is a per-(internship, period) tally of receipt statuses.
type PeriodStatusCount struct {
	InternshipID string `db:"internship_id"`
	PeriodMonth  int    `db:"period_month"`
	PeriodYear   int    `db:"period_year"`
	Total        int    `db:"total"`
	Approved     int    `db:"approved"`
	Pending      int    `db:"pending"`
	Rejected     int    `db:"rejected"`
}

// Period returns the tallied month.
func (c PeriodStatusCount) Period() Period {
	return Period{Month: c.PeriodMonth, Year: c.PeriodYear}
}

// Addressed reports whether the period has a receipt that satisfies reconciliation.
// rejectedCounts decides whether rejected receipts alone are enough.
func (c PeriodStatusCount) Addressed(rejectedCounts bool) bool {
	if rejectedCounts {
		return c.Total > 0
	}
	return c.Total-c.Rejected > 0
}
