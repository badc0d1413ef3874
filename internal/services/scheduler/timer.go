package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// Timer registers named recurring callbacks.
type Timer interface {
	// Daily fires fn every day at the given wall-clock time in loc.
	Daily(name string, at models.TimeOfDay, loc *time.Location, fn func(firedAt time.Time)) error
	// Every fires fn at a fixed interval.
	Every(name string, interval time.Duration, fn func(firedAt time.Time)) error
	// Next returns the next fire time of a registered callback.
	Next(name string) (time.Time, bool)
	// CancelAll removes every registration.
	CancelAll()
}

// CronTimer implements Timer on robfig/cron.
type CronTimer struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	now     func() time.Time
	mu      sync.Mutex
}

// NewCronTimer creates and starts a cron-backed timer. loc is the default
// zone for interval schedules.
func NewCronTimer(loc *time.Location, log *slog.Logger) *CronTimer {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: logger.Or(log).With(slog.String("component", "cron"))}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	c.Start()

	return &CronTimer{
		cron:    c,
		entries: make(map[string]cron.EntryID),
		now:     time.Now,
	}
}

// Daily implements Timer.
func (t *CronTimer) Daily(name string, at models.TimeOfDay, loc *time.Location, fn func(time.Time)) error {
	if !at.Valid() {
		return fmt.Errorf("invalid time of day %s", at)
	}
	if loc == nil {
		loc = time.UTC
	}
	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), at.Minute, at.Hour)
	return t.add(name, spec, fn)
}

// Every implements Timer.
func (t *CronTimer) Every(name string, interval time.Duration, fn func(time.Time)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}
	return t.add(name, "@every "+interval.String(), fn)
}

func (t *CronTimer) add(name, spec string, fn func(time.Time)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.entries[name]; ok {
		t.cron.Remove(id)
		delete(t.entries, name)
	}

	id, err := t.cron.AddFunc(spec, func() { fn(t.now()) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s (%s): %w", name, spec, err)
	}
	t.entries[name] = id
	return nil
}

// Next implements Timer.
func (t *CronTimer) Next(name string) (time.Time, bool) {
	t.mu.Lock()
	id, ok := t.entries[name]
	t.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := t.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(t.now()), true
	}
	return entry.Next, true
}

// CancelAll implements Timer.
func (t *CronTimer) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, id := range t.entries {
		t.cron.Remove(id)
		delete(t.entries, name)
	}
}

// Stop halts the cron loop. The returned context is done once running
// callbacks have returned.
func (t *CronTimer) Stop() context.Context {
	t.CancelAll()
	return t.cron.Stop()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{logger.Err(err)}, keysAndValues...)...)
}
