package service

import (
	"time"

	"github.com/noah-isme/dekont-api/internal/models"
)

// UrgencyTierFor classifies today against the monthly submission window.
func UrgencyTierFor(today time.Time) models.UrgencyTier {
	day := today.Day()
	switch {
	case day >= 1 && day <= models.CriticalWindowDay:
		return models.UrgencyCritical
	case day > models.CriticalWindowDay:
		return models.UrgencyOverdue
	default:
		return models.UrgencyNormal
	}
}

// TargetPeriod is the most recently closed month relative to today.
func TargetPeriod(today time.Time) models.Period {
	return models.PeriodOf(today).Previous()
}

// ScanMissing lists internships that owe a receipt for the month before today
// and have none addressing it. counts holds tallies for that month; rows for
// other periods are ignored. With rejectedCounts a rejected receipt still
// addresses the period.
func ScanMissing(internships []models.Internship, counts []models.PeriodStatusCount, today time.Time, rejectedCounts bool) models.ReconciliationReport {
	target := TargetPeriod(today)

	addressed := make(map[string]bool, len(counts))
	for _, c := range counts {
		if c.Period() == target && c.Addressed(rejectedCounts) {
			addressed[c.InternshipID] = true
		}
	}

	report := models.ReconciliationReport{
		Period:  target,
		Tier:    UrgencyTierFor(today),
		Today:   today.Format("2006-01-02"),
		Missing: []models.MissingReceipt{},
	}
	for i := range internships {
		internship := &internships[i]
		if !internship.CollectsFor(target) {
			continue
		}
		report.Considered++
		if addressed[internship.ID] {
			continue
		}
		report.Missing = append(report.Missing, models.MissingReceipt{
			InternshipID:     internship.ID,
			StudentID:        internship.StudentID,
			StudentName:      internship.StudentName,
			ClassName:        internship.ClassName,
			EnrollmentNumber: internship.EnrollmentNumber,
			CompanyName:      internship.CompanyName,
			TeacherID:        internship.TeacherID,
			TeacherName:      internship.TeacherName,
			Period:           target,
		})
	}
	return report
}

// ComputeCompliance walks every closed period an internship owes and reports
// the ones with no addressed receipt.
func ComputeCompliance(internship *models.Internship, counts []models.PeriodStatusCount, today time.Time, rejectedCounts bool) models.InternshipCompliance {
	result := models.InternshipCompliance{
		InternshipID:   internship.ID,
		StudentName:    internship.StudentName,
		Tier:           UrgencyTierFor(today),
		MissingPeriods: []models.Period{},
	}

	byPeriod := make(map[models.Period]models.PeriodStatusCount, len(counts))
	for _, c := range counts {
		if c.InternshipID != internship.ID {
			continue
		}
		byPeriod[c.Period()] = c
		result.ApprovedCount += c.Approved
		result.PendingCount += c.Pending
		result.RejectedCount += c.Rejected
	}

	last := TargetPeriod(today)
	if due := internship.LastDuePeriod(); due != nil && due.Before(last) {
		last = *due
	}
	for p := internship.StartPeriod(); !last.Before(p); p = p.Next() {
		result.DuePeriods++
		if c, ok := byPeriod[p]; ok && c.Addressed(rejectedCounts) {
			continue
		}
		result.MissingPeriods = append(result.MissingPeriods, p)
	}
	return result
}
