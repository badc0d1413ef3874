// Package scheduler fires the two daily reset windows, guards them against
// duplicate runs and executes manual resets.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/notify"
)

// Trigger names.
const (
	TriggerFirst     = "first"
	TriggerSecond    = "second"
	TriggerHeartbeat = "heartbeat"
	TriggerManual    = "manual"
)

const (
	// Tolerance is how far a fire time may drift from the configured time.
	Tolerance = 3 * time.Minute
	// HeartbeatInterval is the liveness log interval.
	HeartbeatInterval = 5 * time.Minute
)

// Run results reported to metrics.
const (
	ResultExecuted   = "executed"
	ResultRejected   = "rejected"
	ResultDuplicate  = "duplicate"
	ResultNoAccounts = "no_accounts"
)

// StateStore persists the schedule and the per-day execution flags.
type StateStore interface {
	GetScheduleConfig(ctx context.Context) (models.ScheduleConfig, error)
	SaveScheduleConfig(ctx context.Context, cfg models.ScheduleConfig) error
	GetExecutionState(ctx context.Context) (models.ExecutionDayState, error)
	SaveExecutionState(ctx context.Context, state models.ExecutionDayState) error
}

// AuditWriter appends audit entries.
type AuditWriter interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
}

// AccountSource lists the accounts a run covers.
type AccountSource interface {
	EnabledAccounts() []models.Account
}

// Runner executes resets for a set of accounts.
type Runner interface {
	ProcessAccounts(ctx context.Context, accounts []models.Account, resetType models.ResetType) []models.AccountResetResult
}

// Notifier delivers the one-per-run user notification.
type Notifier interface {
	Notify(title, message string) error
}

// Metrics counts scheduler decisions.
type Metrics interface {
	SchedulerRun(trigger, result string)
}

// Config wires a Scheduler.
type Config struct {
	Timer    Timer
	Store    StateStore
	Accounts AccountSource
	Runner   Runner
	Audit    AuditWriter
	Notifier Notifier
	Metrics  Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	// OnRun is called after every executed run.
	OnRun func(RunSummary)
}

// Scheduler owns the reset triggers.
type Scheduler struct {
	timer    Timer
	store    StateStore
	accounts AccountSource
	runner   Runner
	audit    AuditWriter
	notifier Notifier
	metrics  Metrics
	log      *slog.Logger
	now      func() time.Time
	onRun    func(RunSummary)

	flights singleflight.Group
	lastRun atomic.Pointer[RunSummary]

	// stateMu serializes read-modify-write of the execution state.
	stateMu     sync.Mutex
	initMu      sync.Mutex
	initialized bool
}

// New creates a scheduler. Call Initialize to install triggers.
func New(cfg Config) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	var notifier Notifier = notify.Nop{}
	if cfg.Notifier != nil {
		notifier = cfg.Notifier
	}
	return &Scheduler{
		timer:    cfg.Timer,
		store:    cfg.Store,
		accounts: cfg.Accounts,
		runner:   cfg.Runner,
		audit:    cfg.Audit,
		notifier: notifier,
		metrics:  cfg.Metrics,
		log:      logger.Or(cfg.Logger).With(slog.String("component", "scheduler")),
		now:      now,
		onRun:    cfg.OnRun,
	}
}

// Initialize installs the daily triggers and the heartbeat. A disabled
// schedule clears all triggers. Calling it again is a no-op.
func (s *Scheduler) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	cfg, err := s.store.GetScheduleConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	if !cfg.Enabled {
		s.timer.CancelAll()
		s.initialized = false
		s.log.Info("schedule disabled, triggers cleared")
		return nil
	}
	if s.initialized {
		return nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
	}

	s.timer.CancelAll()
	if err := s.timer.Daily(TriggerFirst, cfg.FirstReset, loc, s.callback(TriggerFirst)); err != nil {
		return err
	}
	if err := s.timer.Daily(TriggerSecond, cfg.SecondReset, loc, s.callback(TriggerSecond)); err != nil {
		return err
	}
	if err := s.timer.Every(TriggerHeartbeat, HeartbeatInterval, s.callback(TriggerHeartbeat)); err != nil {
		return err
	}
	s.initialized = true

	s.log.Info("schedule installed",
		slog.String("first", cfg.FirstReset.String()),
		slog.String("second", cfg.SecondReset.String()),
		slog.String("timezone", loc.String()))
	return nil
}

func (s *Scheduler) callback(name string) func(time.Time) {
	return func(firedAt time.Time) {
		s.HandleTrigger(context.Background(), name, firedAt)
	}
}

// UpdateSchedule validates and persists cfg, then reinstalls the triggers.
func (s *Scheduler) UpdateSchedule(ctx context.Context, cfg models.ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, err, "invalid schedule: %v", err)
	}
	if err := s.store.SaveScheduleConfig(ctx, cfg); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to save schedule")
	}

	s.initMu.Lock()
	s.initialized = false
	s.initMu.Unlock()

	s.log.Info("schedule updated", slog.Bool("enabled", cfg.Enabled))
	return s.Initialize(ctx)
}

// NextTimes holds the upcoming fire times of the daily triggers.
type NextTimes struct {
	First  *time.Time `json:"first,omitempty"`
	Second *time.Time `json:"second,omitempty"`
}

// NextScheduledTimes returns the timer's next fire times.
func (s *Scheduler) NextScheduledTimes() NextTimes {
	var nt NextTimes
	if t, ok := s.timer.Next(TriggerFirst); ok {
		nt.First = &t
	}
	if t, ok := s.timer.Next(TriggerSecond); ok {
		nt.Second = &t
	}
	return nt
}

// LastRun returns the most recent run summary, if any.
func (s *Scheduler) LastRun() *RunSummary {
	return s.lastRun.Load()
}

// HandleTrigger reacts to a timer firing.
func (s *Scheduler) HandleTrigger(ctx context.Context, name string, firedAt time.Time) {
	var resetType models.ResetType
	switch name {
	case TriggerHeartbeat:
		s.log.Debug("heartbeat", slog.Time("at", firedAt))
		return
	case TriggerFirst:
		resetType = models.ResetFirst
	case TriggerSecond:
		resetType = models.ResetSecond
	default:
		s.log.Warn("unknown trigger", slog.String("trigger", name))
		return
	}

	log := s.log.With(slog.String("trigger", name), slog.Time("fired_at", firedAt))
	log.Info("trigger received")

	cfg, err := s.store.GetScheduleConfig(ctx)
	if err != nil {
		log.Error("failed to load schedule", logger.Err(err))
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid schedule timezone", logger.Err(err))
		return
	}
	at, _ := cfg.TimeFor(resetType)

	target, ok := MatchWindow(firedAt, at, loc, Tolerance)
	if !ok {
		log.Warn("trigger outside tolerance window, ignored", slog.String("configured", at.String()))
		s.count(name, ResultRejected)
		return
	}

	// Runs always complete; only the client's per-call timeout cancels a request.
	runCtx := context.WithoutCancel(ctx)
	_, _, _ = s.flights.Do(string(resetType), func() (any, error) {
		s.runScheduled(runCtx, log, name, resetType, target.Format(models.DateLayout))
		return nil, nil
	})
}

func (s *Scheduler) runScheduled(ctx context.Context, log *slog.Logger, name string, resetType models.ResetType, date string) {
	s.stateMu.Lock()
	state, err := s.store.GetExecutionState(ctx)
	if err != nil {
		s.stateMu.Unlock()
		log.Error("failed to load execution state", logger.Err(err))
		return
	}
	if state.Rollover(date) {
		log.Info("new day, execution flags cleared", slog.String("date", date))
		if err := s.store.SaveExecutionState(ctx, state); err != nil {
			log.Error("failed to save execution state", logger.Err(err))
		}
	}
	if state.Done(resetType) {
		s.stateMu.Unlock()
		log.Info("already executed today, skipping", slog.String("date", date))
		s.count(name, ResultDuplicate)
		return
	}
	s.stateMu.Unlock()

	accounts := s.accounts.EnabledAccounts()
	if len(accounts) == 0 {
		log.Warn("no enabled accounts, skipping")
		s.count(name, ResultNoAccounts)
		s.writeAudit(ctx, models.AuditEntry{
			Level:   models.AuditWarning,
			Event:   "scheduled_reset_skipped",
			Message: fmt.Sprintf("%s reset skipped: no enabled accounts", resetType),
		})
		return
	}

	results := s.runner.ProcessAccounts(ctx, accounts, resetType)
	summary := Summarize(name, resetType, results)

	s.stateMu.Lock()
	if state, err = s.store.GetExecutionState(ctx); err != nil {
		log.Error("failed to reload execution state", logger.Err(err))
		state = models.ExecutionDayState{}
	}
	state.Rollover(date)
	state.MarkDone(resetType, s.now())
	if err := s.store.SaveExecutionState(ctx, state); err != nil {
		log.Error("failed to save execution state", logger.Err(err))
	}
	s.stateMu.Unlock()

	s.finish(ctx, log, "scheduled_reset", summary)
	s.count(name, ResultExecuted)
}

// TriggerManualReset runs a MANUAL reset over all enabled accounts. No
// window or daily dedupe applies.
func (s *Scheduler) TriggerManualReset(ctx context.Context) (ManualResult, error) {
	accounts := s.accounts.EnabledAccounts()
	if len(accounts) == 0 {
		return ManualResult{}, apperr.New(apperr.CodeNoAccounts, "no enabled accounts")
	}

	// The run outlives a caller that gives up; callers sharing the flight
	// must not inherit each other's cancellation either.
	runCtx := context.WithoutCancel(ctx)
	v, _, _ := s.flights.Do(string(models.ResetManual), func() (any, error) {
		log := s.log.With(slog.String("trigger", TriggerManual))
		log.Info("manual reset requested", slog.Int("accounts", len(accounts)))

		results := s.runner.ProcessAccounts(runCtx, accounts, models.ResetManual)
		summary := Summarize(TriggerManual, models.ResetManual, results)
		s.finish(runCtx, log, "manual_reset", summary)
		s.count(TriggerManual, ResultExecuted)
		return ManualOutcome(summary), nil
	})
	return v.(ManualResult), nil
}

func (s *Scheduler) finish(ctx context.Context, log *slog.Logger, event string, summary RunSummary) {
	s.lastRun.Store(&summary)

	log.Info("run finished",
		slog.String("reset_type", string(summary.ResetType)),
		slog.Int("accounts", summary.Accounts()),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("partial", summary.Partial),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped))

	details, err := json.Marshal(summary)
	if err != nil {
		log.Warn("failed to encode run summary", logger.Err(err))
	}
	s.writeAudit(ctx, models.AuditEntry{
		Level:   summary.Level(),
		Event:   event,
		Message: fmt.Sprintf("%s reset: %s", summary.ResetType, summary.Message()),
		Details: details,
	})

	title := fmt.Sprintf("Credit reset (%s)", summary.ResetType)
	if err := s.notifier.Notify(title, summary.Message()); err != nil {
		log.Warn("failed to send notification", logger.Err(err))
	}

	if s.onRun != nil {
		s.onRun(summary)
	}
}

func (s *Scheduler) writeAudit(ctx context.Context, entry models.AuditEntry) {
	if s.audit == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.audit.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("failed to write audit entry", logger.Err(err))
	}
}

func (s *Scheduler) count(trigger, result string) {
	if s.metrics != nil {
		s.metrics.SchedulerRun(trigger, result)
	}
}

// MatchWindow finds the occurrence of at in loc nearest to firedAt and
// reports whether it lies within tol. Occurrences on the neighbouring days
// are considered so windows spanning midnight match.
func MatchWindow(firedAt time.Time, at models.TimeOfDay, loc *time.Location, tol time.Duration) (time.Time, bool) {
	target := at.On(firedAt, loc)
	for _, candidate := range []time.Time{target, target.AddDate(0, 0, -1), target.AddDate(0, 0, 1)} {
		d := firedAt.Sub(candidate)
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return candidate, true
		}
	}
	return time.Time{}, false
}
