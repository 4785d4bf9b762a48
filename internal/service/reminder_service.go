package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/jobs"
	"github.com/noah-isme/dekont-api/pkg/notify"
)

const reminderJobType = "receipt.reminder"

type reminderSink interface {
	Deliver(r notify.Reminder) (bool, error)
}

type missingScanner interface {
	Scan(ctx context.Context) (*models.ReconciliationReport, error)
}

// ReminderConfig sizes the delivery worker pool.
type ReminderConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// ReminderService turns missing-receipt reports into reminders in the outbox.
type ReminderService struct {
	sink    reminderSink
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewReminderService constructs the service and its delivery queue. Call Start before Dispatch.
func NewReminderService(sink reminderSink, metrics *MetricsService, logger *zap.Logger, cfg ReminderConfig) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReminderService{sink: sink, metrics: metrics, logger: logger, now: time.Now}
	s.queue = jobs.NewQueue("reminders", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *ReminderService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts the workers. Reminders still buffered are dropped; the next scan recreates them.
func (s *ReminderService) Stop() {
	s.queue.Stop()
}

// Stats exposes the delivery queue counters.
func (s *ReminderService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Dispatch queues one reminder per missing entry and returns how many were queued.
func (s *ReminderService) Dispatch(ctx context.Context, report *models.ReconciliationReport) (*dto.ReminderDispatchResult, error) {
	result := &dto.ReminderDispatchResult{Period: report.Period.String(), Tier: string(report.Tier)}
	for _, reminder := range s.buildReminders(report) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		job := jobs.Job{ID: reminder.Key, Type: reminderJobType, Payload: reminder}
		if err := s.queue.Enqueue(job); err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reminder queue unavailable")
		}
		result.Queued++
	}
	return result, nil
}

// DeliverNow writes reminders synchronously and reports how many were new.
func (s *ReminderService) DeliverNow(report *models.ReconciliationReport) (*dto.ReminderDispatchResult, error) {
	result := &dto.ReminderDispatchResult{Period: report.Period.String(), Tier: string(report.Tier)}
	for _, reminder := range s.buildReminders(report) {
		created, err := s.sink.Deliver(reminder)
		if err != nil {
			return result, fmt.Errorf("deliver reminder %s: %w", reminder.Key, err)
		}
		s.metrics.RecordReminder(report.Tier, created)
		if created {
			result.Queued++
		}
	}
	return result, nil
}

// StartScheduler rescans every interval and dispatches reminders until ctx ends.
func (s *ReminderService) StartScheduler(ctx context.Context, scanner missingScanner, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := scanner.Scan(ctx)
				if err != nil {
					s.logger.Warn("scheduled reconciliation scan failed", zap.Error(err))
					continue
				}
				res, err := s.Dispatch(ctx, report)
				if err != nil {
					s.logger.Warn("scheduled reminder dispatch failed", zap.Error(err))
					continue
				}
				s.logger.Info("scheduled reminders queued", zap.String("period", res.Period), zap.Int("queued", res.Queued))
			}
		}
	}()
}

func (s *ReminderService) handle(_ context.Context, job jobs.Job) error {
	reminder, ok := job.Payload.(notify.Reminder)
	if !ok {
		s.logger.Error("unexpected reminder payload", zap.String("job_id", job.ID))
		return nil
	}
	created, err := s.sink.Deliver(reminder)
	if err != nil {
		return err
	}
	s.metrics.RecordReminder(models.UrgencyTier(reminder.Tier), created)
	return nil
}

func (s *ReminderService) buildReminders(report *models.ReconciliationReport) []notify.Reminder {
	day := report.Today
	if day == "" {
		day = s.now().UTC().Format("2006-01-02")
	}
	period := report.Period.String()
	out := make([]notify.Reminder, 0, len(report.Missing))
	for _, m := range report.Missing {
		out = append(out, notify.Reminder{
			Key:          notify.ReminderKey(m.InternshipID, period, string(report.Tier), day),
			InternshipID: m.InternshipID,
			StudentID:    m.StudentID,
			StudentName:  m.StudentName,
			TeacherID:    m.TeacherID,
			TeacherName:  m.TeacherName,
			Period:       period,
			Tier:         string(report.Tier),
			Day:          day,
			Message:      reminderMessage(m, report.Tier),
			CreatedAt:    s.now().UTC(),
		})
	}
	return out
}

func reminderMessage(m models.MissingReceipt, tier models.UrgencyTier) string {
	switch tier {
	case models.UrgencyCritical:
		return fmt.Sprintf("%s has no receipt for %s. Submit it by day %d of this month.", m.StudentName, m.Period, models.CriticalWindowDay)
	case models.UrgencyOverdue:
		return fmt.Sprintf("%s's receipt for %s is overdue.", m.StudentName, m.Period)
	default:
		return fmt.Sprintf("%s has no receipt for %s.", m.StudentName, m.Period)
	}
}
