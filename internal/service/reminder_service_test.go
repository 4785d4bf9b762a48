package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/pkg/jobs"
	"github.com/noah-isme/dekont-api/pkg/notify"
)

func openTestOutbox(t *testing.T) *notify.Outbox {
	t.Helper()
	outbox, err := notify.OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })
	return outbox
}

func missingReport(tier models.UrgencyTier, ids ...string) *models.ReconciliationReport {
	report := &models.ReconciliationReport{
		Period: models.Period{Month: 5, Year: 2024},
		Tier:   tier,
		Today:  "2024-06-03",
	}
	for _, id := range ids {
		report.Missing = append(report.Missing, models.MissingReceipt{
			InternshipID: id,
			StudentID:    "student-" + id,
			StudentName:  "Student " + id,
			TeacherID:    "teacher-1",
			TeacherName:  "Coordinator",
			Period:       report.Period,
		})
	}
	return report
}

func TestDeliverNowIsIdempotentPerDay(t *testing.T) {
	outbox := openTestOutbox(t)
	svc := NewReminderService(outbox, NewMetricsService(), zap.NewNop(), ReminderConfig{})

	first, err := svc.DeliverNow(missingReport(models.UrgencyCritical, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Queued)
	assert.Equal(t, "2024-05", first.Period)
	assert.Equal(t, string(models.UrgencyCritical), first.Tier)

	again, err := svc.DeliverNow(missingReport(models.UrgencyCritical, "a", "b"))
	require.NoError(t, err)
	assert.Zero(t, again.Queued)

	nextDay := missingReport(models.UrgencyCritical, "a")
	nextDay.Today = "2024-06-04"
	later, err := svc.DeliverNow(nextDay)
	require.NoError(t, err)
	assert.Equal(t, 1, later.Queued)

	pending, err := outbox.Pending(0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, notify.ReminderKey("a", "2024-05", "CRITICAL", "2024-06-03"), pending[0].Key)
	assert.Contains(t, pending[0].Message, "day 10")
}

func TestDispatchDeliversThroughQueue(t *testing.T) {
	outbox := openTestOutbox(t)
	svc := NewReminderService(outbox, nil, zap.NewNop(), ReminderConfig{Workers: 2, RetryDelay: 10 * time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	result, err := svc.Dispatch(context.Background(), missingReport(models.UrgencyOverdue, "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Queued)

	require.Eventually(t, func() bool {
		return svc.Stats().Processed == 3
	}, 2*time.Second, 10*time.Millisecond)

	pending, err := outbox.Pending(0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "OVERDUE", pending[0].Tier)
	assert.Contains(t, pending[0].Message, "overdue")
}

func TestDispatchRequiresRunningQueue(t *testing.T) {
	svc := NewReminderService(openTestOutbox(t), nil, nil, ReminderConfig{})
	_, err := svc.Dispatch(context.Background(), missingReport(models.UrgencyOverdue, "a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobs.ErrQueueStopped))
}

type flakySink struct {
	failures int
	calls    int
	inner    reminderSink
}

func (f *flakySink) Deliver(r notify.Reminder) (bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return false, errors.New("outbox locked")
	}
	return f.inner.Deliver(r)
}

func TestDispatchRetriesFailedDelivery(t *testing.T) {
	outbox := openTestOutbox(t)
	sink := &flakySink{failures: 1, inner: outbox}
	svc := NewReminderService(sink, nil, nil, ReminderConfig{Workers: 1, Retries: 2, RetryDelay: 5 * time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Dispatch(context.Background(), missingReport(models.UrgencyCritical, "a"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.Stats().Processed == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), svc.Stats().Retried)
}

func TestBuildRemindersFallsBackToClockDay(t *testing.T) {
	svc := NewReminderService(nil, nil, nil, ReminderConfig{})
	svc.now = func() time.Time { return time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC) }

	report := missingReport(models.UrgencyOverdue, "a")
	report.Today = ""
	reminders := svc.buildReminders(report)
	require.Len(t, reminders, 1)
	assert.Equal(t, "2024-06-15", reminders[0].Day)
	assert.Equal(t, "teacher-1", reminders[0].TeacherID)
}
