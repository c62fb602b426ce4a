package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
	"github.com/robfig/cron/v3"
)

// Default cron expressions, evaluated in the scheduler's timezone.
const (
	ProductionSchedule  = "0 12 * * *"
	DevelopmentSchedule = "*/5 * * * *"
)

// ResolveSchedule picks the cron expression for the environment. A
// non-empty override wins over both defaults.
func ResolveSchedule(production bool, override string) string {
	if override != "" {
		return override
	}
	if production {
		return ProductionSchedule
	}
	return DevelopmentSchedule
}

// Runner is the batch work a scheduler fires.
type Runner interface {
	Run(ctx context.Context) (RunStats, error)
}

// SchedulerConfig configures the recurring digest run.
type SchedulerConfig struct {
	Schedule   string
	Location   *time.Location
	RunTimeout time.Duration
}

// Scheduler fires the digest job on a cron schedule. A scheduled run that
// would overlap a still-running one is skipped.
type Scheduler struct {
	cron       *cron.Cron
	job        Runner
	schedule   string
	runTimeout time.Duration
	baseCtx    context.Context
}

// NewScheduler validates the schedule and builds the cron runner.
func NewScheduler(cfg SchedulerConfig, job Runner) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 15 * time.Minute
	}

	logger := cronLogger{logger: slog.Default().With("component", "scheduler")}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:       c,
		job:        job,
		schedule:   cfg.Schedule,
		runTimeout: cfg.RunTimeout,
		baseCtx:    context.Background(),
	}, nil
}

// Start registers the job and starts the cron loop. Runs inherit values
// from ctx but are not cancelled when it ends; use Stop for that.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = context.WithoutCancel(ctx)

	if _, err := s.cron.AddFunc(s.schedule, s.runScheduled); err != nil {
		return fmt.Errorf("register digest job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	next := time.Time{}
	if len(entries) > 0 {
		next = entries[0].Next
	}
	slog.Info("digest scheduler started", "schedule", s.schedule, "next_run", next)
	return nil
}

// Stop stops the cron loop and waits for a running job up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("digest scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running digest job: %w", ctx.Err())
	}
}

// Trigger runs the job once, outside the schedule.
func (s *Scheduler) Trigger(ctx context.Context) (RunStats, error) {
	return s.runOnce(ctx, "manual")
}

func (s *Scheduler) runScheduled() {
	_, _ = s.runOnce(s.baseCtx, "schedule")
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) (RunStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	ctx = ctxlog.With(ctx, "trigger", trigger)
	return s.job.Run(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
