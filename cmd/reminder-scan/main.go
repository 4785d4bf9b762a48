package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/repository"
	"github.com/noah-isme/dekont-api/internal/service"
	"github.com/noah-isme/dekont-api/pkg/config"
	"github.com/noah-isme/dekont-api/pkg/database"
	"github.com/noah-isme/dekont-api/pkg/logger"
	"github.com/noah-isme/dekont-api/pkg/notify"
)

type options struct {
	outbox    string
	today     string
	dryRun    bool
	drain     bool
	limit     int
	rejected  bool
	dbTimeout time.Duration
}

func main() {
	fs := ff.NewFlagSet("reminder-scan")
	var (
		outboxPath      = fs.StringLong("outbox", "", "reminder outbox file (defaults to REMINDERS_OUTBOX_PATH)")
		today           = fs.StringLong("today", "", "scan as if today were this date, YYYY-MM-DD")
		dryRun          = fs.BoolLong("dry-run", "print the report without writing reminders")
		rejectedMissing = fs.BoolLong("rejected-is-missing", "treat internships whose only receipt was rejected as missing")
		dbTimeout       = fs.DurationLong("db-timeout", 5*time.Second, "database connect timeout")
		drain           = fs.BoolLong("drain", "print pending reminders as JSON lines and acknowledge them, without scanning")
		limit           = fs.IntLong("limit", 0, "maximum reminders to drain (0 means all)")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("DEKONT")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	opts := options{
		outbox:    *outboxPath,
		today:     *today,
		dryRun:    *dryRun,
		drain:     *drain,
		limit:     *limit,
		rejected:  cfg.Reconciliation.RejectedCountsAsAddressed && !*rejectedMissing,
		dbTimeout: *dbTimeout,
	}
	if opts.outbox == "" {
		opts.outbox = cfg.Reminders.OutboxPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := run
	if opts.drain {
		runner = drainOutbox
	}
	if err := runner(ctx, cfg, opts, logr); err != nil {
		logr.Error("reminder scan failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logr *zap.Logger) error {
	loc := cfg.Location()
	now, err := clock(opts.today, loc)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(cfg.Database, opts.dbTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	scanner := service.NewReconciliationService(
		repository.NewInternshipRepository(db),
		repository.NewReceiptRepository(db),
		nil, nil, logr,
		service.ReconciliationConfig{
			RejectedCountsAsAddressed: opts.rejected,
			Location:                  loc,
			Now:                       now,
		},
	)
	report, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return printReport(report)
	}

	outbox, err := notify.OpenOutbox(opts.outbox)
	if err != nil {
		return err
	}
	defer outbox.Close()

	reminders := service.NewReminderService(outbox, nil, logr, service.ReminderConfig{})
	result, err := reminders.DeliverNow(report)
	if err != nil {
		return err
	}
	logr.Info("reminders written",
		zap.String("period", result.Period),
		zap.String("tier", result.Tier),
		zap.Int("missing", len(report.Missing)),
		zap.Int("new", result.Queued),
	)
	return nil
}

// drainOutbox hands pending reminders to whatever reads stdout and marks them delivered.
func drainOutbox(_ context.Context, _ *config.Config, opts options, logr *zap.Logger) error {
	outbox, err := notify.OpenOutbox(opts.outbox)
	if err != nil {
		return err
	}
	defer outbox.Close()

	pending, err := outbox.Pending(opts.limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, reminder := range pending {
		if err := enc.Encode(reminder); err != nil {
			return err
		}
		if err := outbox.Ack(reminder.Key, time.Now().UTC()); err != nil {
			return err
		}
	}
	logr.Info("reminders drained", zap.Int("count", len(pending)))
	return nil
}

func clock(today string, loc *time.Location) (func() time.Time, error) {
	if today == "" {
		return time.Now, nil
	}
	fixed, err := time.ParseInLocation("2006-01-02", today, loc)
	if err != nil {
		return nil, fmt.Errorf("parse --today: %w", err)
	}
	return func() time.Time { return fixed.Add(12 * time.Hour) }, nil
}

func printReport(report *models.ReconciliationReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
