package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/models"
)

func TestUrgencyTierFor(t *testing.T) {
	assert.Equal(t, models.UrgencyCritical, UrgencyTierFor(date(2024, time.June, 1)))
	assert.Equal(t, models.UrgencyCritical, UrgencyTierFor(date(2024, time.June, 10)))
	assert.Equal(t, models.UrgencyOverdue, UrgencyTierFor(date(2024, time.June, 11)))
	assert.Equal(t, models.UrgencyOverdue, UrgencyTierFor(date(2024, time.June, 30)))
}

func TestTargetPeriodRollsOverYear(t *testing.T) {
	assert.Equal(t, models.Period{Month: 12, Year: 2023}, TargetPeriod(date(2024, time.January, 5)))
	assert.Equal(t, models.Period{Month: 5, Year: 2024}, TargetPeriod(date(2024, time.June, 3)))
}

func TestScanMissingEscalatesTier(t *testing.T) {
	internships := []models.Internship{*internshipFixture("int-1", date(2024, time.January, 10))}

	early := ScanMissing(internships, nil, date(2024, time.June, 3), true)
	assert.Equal(t, models.UrgencyCritical, early.Tier)
	assert.Equal(t, models.Period{Month: 5, Year: 2024}, early.Period)
	require.Len(t, early.Missing, 1)
	assert.Equal(t, "int-1", early.Missing[0].InternshipID)
	assert.Equal(t, models.Period{Month: 5, Year: 2024}, early.Missing[0].Period)

	late := ScanMissing(internships, nil, date(2024, time.June, 12), true)
	assert.Equal(t, models.UrgencyOverdue, late.Tier)
	require.Len(t, late.Missing, 1)
	assert.Equal(t, early.Missing[0], late.Missing[0])
}

func TestScanMissingExcludesInternshipsNotYetDue(t *testing.T) {
	internships := []models.Internship{
		*internshipFixture("due", date(2024, time.April, 20)),
		*internshipFixture("starts-after", date(2024, time.June, 1)),
	}
	report := ScanMissing(internships, nil, date(2024, time.June, 12), true)
	assert.Equal(t, 1, report.Considered)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "due", report.Missing[0].InternshipID)
}

func TestScanMissingCountsAnyStatusAsAddressed(t *testing.T) {
	internships := []models.Internship{
		*internshipFixture("pending", date(2024, time.January, 1)),
		*internshipFixture("rejected", date(2024, time.January, 1)),
		*internshipFixture("other-month", date(2024, time.January, 1)),
	}
	counts := []models.PeriodStatusCount{
		{InternshipID: "pending", PeriodMonth: 5, PeriodYear: 2024, Total: 1, Pending: 1},
		{InternshipID: "rejected", PeriodMonth: 5, PeriodYear: 2024, Total: 1, Rejected: 1},
		{InternshipID: "other-month", PeriodMonth: 4, PeriodYear: 2024, Total: 1, Approved: 1},
	}
	today := date(2024, time.June, 12)

	report := ScanMissing(internships, counts, today, true)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "other-month", report.Missing[0].InternshipID)

	strict := ScanMissing(internships, counts, today, false)
	require.Len(t, strict.Missing, 2)
	assert.Equal(t, "rejected", strict.Missing[0].InternshipID)
	assert.Equal(t, "other-month", strict.Missing[1].InternshipID)
}

func TestScanMissingClosedInternships(t *testing.T) {
	ended := *internshipFixture("completed-may", date(2024, time.January, 1))
	ended.Status = models.InternshipStatusCompleted
	mayEnd := date(2024, time.May, 31)
	ended.EndDate = &mayEnd

	terminated := *internshipFixture("terminated-april", date(2024, time.January, 1))
	terminated.Status = models.InternshipStatusTerminated
	aprilEnd := date(2024, time.April, 15)
	terminated.TerminationDate = &aprilEnd

	report := ScanMissing([]models.Internship{ended, terminated}, nil, date(2024, time.June, 5), true)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "completed-may", report.Missing[0].InternshipID)
}

func TestComputeCompliance(t *testing.T) {
	internship := internshipFixture("int-1", date(2024, time.February, 12))
	counts := []models.PeriodStatusCount{
		{InternshipID: "int-1", PeriodMonth: 2, PeriodYear: 2024, Total: 1, Approved: 1},
		{InternshipID: "int-1", PeriodMonth: 3, PeriodYear: 2024, Total: 2, Pending: 1, Rejected: 1},
		{InternshipID: "int-1", PeriodMonth: 5, PeriodYear: 2024, Total: 1, Rejected: 1},
	}

	result := ComputeCompliance(internship, counts, date(2024, time.June, 20), false)
	assert.Equal(t, models.UrgencyOverdue, result.Tier)
	assert.Equal(t, 4, result.DuePeriods)
	assert.Equal(t, []models.Period{{Month: 4, Year: 2024}, {Month: 5, Year: 2024}}, result.MissingPeriods)
	assert.Equal(t, 1, result.ApprovedCount)
	assert.Equal(t, 1, result.PendingCount)
	assert.Equal(t, 2, result.RejectedCount)

	lenient := ComputeCompliance(internship, counts, date(2024, time.June, 20), true)
	assert.Equal(t, []models.Period{{Month: 4, Year: 2024}}, lenient.MissingPeriods)
}

func TestComputeComplianceStopsAtClosingDate(t *testing.T) {
	internship := internshipFixture("int-1", date(2024, time.January, 8))
	internship.Status = models.InternshipStatusTerminated
	terminated := date(2024, time.March, 10)
	internship.TerminationDate = &terminated

	result := ComputeCompliance(internship, nil, date(2024, time.June, 2), true)
	assert.Equal(t, 3, result.DuePeriods)
	assert.Len(t, result.MissingPeriods, 3)
}
