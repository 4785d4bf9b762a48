package models

import "time"

// InternshipStatus is the lifecycle state of a placement.
type InternshipStatus string

const (
	InternshipStatusActive     InternshipStatus = "ACTIVE"
	InternshipStatusCompleted  InternshipStatus = "COMPLETED"
	InternshipStatusTerminated InternshipStatus = "TERMINATED"
)

// Internship links a student to a company and a coordinating teacher. The
// receipt engine treats it as read-only reference data.
type Internship struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CompanyID        string           `db:"company_id" json:"company_id"`
	TeacherID        string           `db:"teacher_id" json:"teacher_id"`
	StartDate        time.Time        `db:"start_date" json:"start_date"`
	EndDate          *time.Time       `db:"end_date" json:"end_date,omitempty"`
	TerminationDate  *time.Time       `db:"termination_date" json:"termination_date,omitempty"`
	Status           InternshipStatus `db:"status" json:"status"`
	StudentName      string           `db:"student_name" json:"student_name"`
	StudentUserID    *string          `db:"student_user_id" json:"-"`
	ClassName        string           `db:"class_name" json:"class_name"`
	EnrollmentNumber string           `db:"enrollment_number" json:"enrollment_number"`
	CompanyName      string           `db:"company_name" json:"company_name"`
	TeacherName      string           `db:"teacher_name" json:"teacher_name"`
	TeacherUserID    *string          `db:"teacher_user_id" json:"-"`
}

// StartPeriod is the first month receipts are due for.
func (i *Internship) StartPeriod() Period {
	return PeriodOf(i.StartDate)
}

// ClosingDate is the termination date for terminated placements, otherwise the end date.
func (i *Internship) ClosingDate() *time.Time {
	if i.Status == InternshipStatusTerminated && i.TerminationDate != nil {
		return i.TerminationDate
	}
	if i.EndDate != nil {
		return i.EndDate
	}
	return i.TerminationDate
}

// LastDuePeriod is the last month receipts are due for, or nil while open-ended.
func (i *Internship) LastDuePeriod() *Period {
	if i.Status == InternshipStatusActive {
		return nil
	}
	closing := i.ClosingDate()
	if closing == nil {
		return nil
	}
	p := PeriodOf(*closing)
	return &p
}

// CollectsFor reports whether a receipt is due from this internship for p:
// the placement must have started by p, and must be active or have closed no
// earlier than p's first day.
func (i *Internship) CollectsFor(p Period) bool {
	if p.Before(i.StartPeriod()) {
		return false
	}
	switch i.Status {
	case InternshipStatusActive:
		return true
	case InternshipStatusCompleted, InternshipStatusTerminated:
		last := i.LastDuePeriod()
		return last != nil && !last.Before(p)
	default:
		return false
	}
}

// CoordinatedBy reports whether the teacher user coordinates this internship.
func (i *Internship) CoordinatedBy(userID string) bool {
	return i.TeacherUserID != nil && *i.TeacherUserID == userID
}

// BelongsToStudent reports whether the student user owns this internship.
func (i *Internship) BelongsToStudent(userID string) bool {
	return i.StudentUserID != nil && *i.StudentUserID == userID
}

// InternshipFilter scopes internship reads.
type InternshipFilter struct {
	TeacherUserID string
	StudentUserID string
	IDs           []string
}
