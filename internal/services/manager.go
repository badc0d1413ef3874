// Package services wires the engine together and exposes the command surface
// used by the TUI and the control API.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/config"
	"github.com/j-veylop/credit-reset-dashboard/internal/db"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/metrics"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/notify"
	"github.com/j-veylop/credit-reset-dashboard/internal/ratelimit"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/accounts"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/api"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/reset"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

type (
	// AccountsChangedEvent is emitted when the accounts list changes.
	AccountsChangedEvent struct {
		Accounts []models.AccountView
	}

	// RunFinishedEvent is emitted after every executed reset run.
	RunFinishedEvent struct {
		Summary scheduler.RunSummary
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (AccountsChangedEvent) isServiceEvent() {}
func (RunFinishedEvent) isServiceEvent()     {}
func (ErrorEvent) isServiceEvent()           {}

// Option configures a Manager.
type Option func(*options)

type options struct {
	timer scheduler.Timer
	now   func() time.Time
}

// WithTimer replaces the cron-backed timer.
func WithTimer(t scheduler.Timer) Option {
	return func(o *options) { o.timer = t }
}

// WithClock replaces time.Now for the scheduler and the reset service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	log         *slog.Logger
	accounts    *accounts.Service
	database    *db.DB
	client      *api.Client
	resets      *reset.Service
	scheduler   *scheduler.Scheduler
	cron        *scheduler.CronTimer
	notifier    *notify.Desktop
	registry    *prometheus.Registry
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
	now         func() time.Time
	closeOnce   sync.Once
}

// NewManager creates a new service manager and installs the schedule.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	m := &Manager{
		log:      logger.Logger.With(slog.String("component", "manager")),
		stopChan: make(chan struct{}),
		registry: prometheus.NewRegistry(),
		now:      o.now,
	}

	seedSchedule, err := cfg.Schedule()
	if err != nil {
		return nil, err
	}

	m.database, err = db.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := m.database.Seed(ctx, seedSchedule, cfg.Preferences()); err != nil {
		_ = m.database.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	m.accounts, err = accounts.New(cfg.AccountsPath)
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}

	schedule, err := m.database.GetScheduleConfig(ctx)
	if err != nil {
		m.closeStores()
		return nil, err
	}
	loc, err := schedule.Location()
	if err != nil {
		m.closeStores()
		return nil, fmt.Errorf("stored schedule timezone: %w", err)
	}
	prefs, err := m.database.GetPreferences(ctx)
	if err != nil {
		m.closeStores()
		return nil, err
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mtr := metrics.New(m.registry)

	bucket := ratelimit.New(cfg.RateLimitCapacity, cfg.RateLimitRefill, cfg.RateLimitInterval)
	m.client = api.New(api.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.RequestTimeout},
		bucket, logger.Logger, api.WithObserver(mtr), api.WithLocation(loc))
	m.resets = reset.New(m.client, logger.Logger,
		reset.WithHistory(m.database),
		reset.WithMetrics(mtr),
		reset.WithLocation(loc),
		reset.WithClock(o.now))

	m.notifier = notify.NewDesktop(prefs.NotificationsEnabled, logger.Logger)

	timer := o.timer
	if timer == nil {
		m.cron = scheduler.NewCronTimer(loc, logger.Logger)
		timer = m.cron
	}

	m.scheduler = scheduler.New(scheduler.Config{
		Timer:    timer,
		Store:    m.database,
		Accounts: m.accounts,
		Runner:   m.resets,
		Audit:    m.database,
		Notifier: m.notifier,
		Metrics:  mtr,
		Logger:   logger.Logger,
		Now:      o.now,
		OnRun: func(s scheduler.RunSummary) {
			m.broadcast(RunFinishedEvent{Summary: s})
		},
	})
	if err := m.scheduler.Initialize(ctx); err != nil {
		m.stopCron()
		m.closeStores()
		return nil, fmt.Errorf("failed to install schedule: %w", err)
	}

	go m.routeEvents()

	return m, nil
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.accounts.Events():
			m.handleAccountEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

// handleAccountEvent converts and broadcasts account events.
func (m *Manager) handleAccountEvent(event accounts.Event) {
	switch event.Type {
	case accounts.EventAccountsLoaded, accounts.EventAccountsChanged,
		accounts.EventAccountAdded, accounts.EventAccountUpdated,
		accounts.EventAccountDeleted:

		m.broadcast(AccountsChangedEvent{Accounts: m.ListAccounts()})

	case accounts.EventError:
		m.broadcast(ErrorEvent{
			Service: "accounts",
			Error:   event.Error,
		})
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// ListAccounts returns every account with its key masked.
func (m *Manager) ListAccounts() []models.AccountView {
	accs := m.accounts.GetAccounts()
	views := make([]models.AccountView, len(accs))
	for i := range accs {
		views[i] = accs[i].View()
	}
	return views
}

// AddAccount registers an account.
func (m *Manager) AddAccount(ctx context.Context, name, apiKey string) (models.AccountView, error) {
	acc, err := m.accounts.AddAccount(name, apiKey)
	if err != nil {
		return models.AccountView{}, asAppErr(err, "failed to add account")
	}
	m.audit(ctx, models.AuditInfo, "account_added", acc.ID, fmt.Sprintf("account %s added", acc.DisplayName()))
	return acc.View(), nil
}

// UpdateAccount changes the fields set in u.
func (m *Manager) UpdateAccount(ctx context.Context, id string, u accounts.Update) (models.AccountView, error) {
	acc, err := m.accounts.UpdateAccount(id, u)
	if err != nil {
		return models.AccountView{}, asAppErr(err, "failed to update account")
	}
	m.audit(ctx, models.AuditInfo, "account_updated", acc.ID, fmt.Sprintf("account %s updated", acc.DisplayName()))
	return acc.View(), nil
}

// DeleteAccount removes an account and its reset history.
func (m *Manager) DeleteAccount(ctx context.Context, id string) error {
	acc, err := m.accounts.DeleteAccount(id)
	if err != nil {
		return asAppErr(err, "failed to delete account")
	}
	if err := m.database.DeleteAccountHistory(ctx, id); err != nil {
		m.log.Warn("failed to delete account history", slog.String("account", id), logger.Err(err))
	}
	m.audit(ctx, models.AuditInfo, "account_deleted", id, fmt.Sprintf("account %s deleted", acc.DisplayName()))
	return nil
}

// ScheduleView is the stored schedule plus the upcoming trigger times.
type ScheduleView struct {
	Next   scheduler.NextTimes   `json:"next"`
	Config models.ScheduleConfig `json:"config"`
}

// GetSchedule returns the stored schedule.
func (m *Manager) GetSchedule(ctx context.Context) (ScheduleView, error) {
	cfg, err := m.database.GetScheduleConfig(ctx)
	if err != nil {
		return ScheduleView{}, asAppErr(err, "failed to load schedule")
	}
	return ScheduleView{Config: cfg, Next: m.scheduler.NextScheduledTimes()}, nil
}

// UpdateSchedule validates, stores and installs cfg.
func (m *Manager) UpdateSchedule(ctx context.Context, cfg models.ScheduleConfig) (ScheduleView, error) {
	if err := m.scheduler.UpdateSchedule(ctx, cfg); err != nil {
		return ScheduleView{}, asAppErr(err, "failed to update schedule")
	}

	if loc, err := cfg.Location(); err == nil {
		m.resets.SetLocation(loc)
		m.client.SetLocation(loc)
	}

	m.audit(ctx, models.AuditInfo, "schedule_updated", "",
		fmt.Sprintf("schedule %s/%s %s enabled=%t", cfg.FirstReset, cfg.SecondReset, cfg.Timezone, cfg.Enabled))
	return m.GetSchedule(ctx)
}

// SetScheduleEnabled toggles the schedule without changing its times.
func (m *Manager) SetScheduleEnabled(ctx context.Context, enabled bool) (ScheduleView, error) {
	view, err := m.GetSchedule(ctx)
	if err != nil {
		return ScheduleView{}, err
	}
	view.Config.Enabled = enabled
	return m.UpdateSchedule(ctx, view.Config)
}

// GetPreferences returns the stored preferences.
func (m *Manager) GetPreferences(ctx context.Context) (models.Preferences, error) {
	prefs, err := m.database.GetPreferences(ctx)
	if err != nil {
		return models.Preferences{}, asAppErr(err, "failed to load preferences")
	}
	return prefs, nil
}

// UpdatePreferences stores prefs and applies them.
func (m *Manager) UpdatePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	if prefs.AuditRetention < 0 {
		return models.Preferences{}, apperr.New(apperr.CodeInvalidInput, "audit retention must not be negative")
	}
	if err := m.database.SavePreferences(ctx, prefs); err != nil {
		return models.Preferences{}, asAppErr(err, "failed to save preferences")
	}
	m.notifier.SetEnabled(prefs.NotificationsEnabled)
	return prefs, nil
}

// ManualReset resets every enabled account now.
func (m *Manager) ManualReset(ctx context.Context) (scheduler.ManualResult, error) {
	res, err := m.scheduler.TriggerManualReset(ctx)
	if err != nil {
		return scheduler.ManualResult{}, asAppErr(err, "manual reset failed")
	}
	return res, nil
}

// GetLogs returns up to limit audit entries, newest first.
func (m *Manager) GetLogs(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries, err := m.database.GetAudit(ctx, limit)
	if err != nil {
		return nil, asAppErr(err, "failed to load logs")
	}
	return entries, nil
}

// ClearLogs deletes the audit log.
func (m *Manager) ClearLogs(ctx context.Context) (int64, error) {
	n, err := m.database.ClearAudit(ctx)
	if err != nil {
		return 0, asAppErr(err, "failed to clear logs")
	}
	if err := m.database.Vacuum(ctx); err != nil {
		m.log.Warn("vacuum after clearing logs failed", logger.Err(err))
	}
	return n, nil
}

// GetHistory returns the latest reset records, newest first. An
// empty accountID covers every account.
func (m *Manager) GetHistory(ctx context.Context, accountID string, limit int) ([]models.ResetRecord, error) {
	records, err := m.database.GetHistory(ctx, accountID, limit)
	if err != nil {
		return nil, asAppErr(err, "failed to load history")
	}
	return records, nil
}

// GetUsage fetches the usage of one account, or of the first enabled account
// when accountID is empty.
func (m *Manager) GetUsage(ctx context.Context, accountID string) (*models.Usage, error) {
	acc, err := m.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	usage, err := m.client.GetUsage(ctx, acc.APIKey)
	if err != nil {
		return nil, asAppErr(err, "failed to fetch usage")
	}
	return usage, nil
}

func (m *Manager) resolveAccount(id string) (models.Account, error) {
	if id != "" {
		return m.accounts.GetAccount(id)
	}
	enabled := m.accounts.EnabledAccounts()
	if len(enabled) == 0 {
		return models.Account{}, apperr.New(apperr.CodeNoAccounts, "no enabled accounts")
	}
	return enabled[0], nil
}

// LastRun returns the most recent run summary, if any.
func (m *Manager) LastRun() *scheduler.RunSummary {
	return m.scheduler.LastRun()
}

// Registry returns the Prometheus registry holding the engine metrics.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// RateTokens returns the tokens left in the shared bucket.
func (m *Manager) RateTokens() int {
	return int(m.client.Bucket().Available())
}

func (m *Manager) audit(ctx context.Context, level models.AuditLevel, event, accountID, msg string) {
	err := m.database.AppendAudit(ctx, models.AuditEntry{
		Timestamp: m.now(),
		Level:     level,
		Event:     event,
		AccountID: accountID,
		Message:   msg,
	})
	if err != nil {
		m.log.Error("failed to write audit entry", slog.String("event", event), logger.Err(err))
	}
}

// asAppErr keeps coded errors and marks everything else internal.
func asAppErr(err error, msg string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.CodeInternal, err, "%s", msg)
}

func (m *Manager) stopCron() {
	if m.cron == nil {
		return
	}
	select {
	case <-m.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		m.log.Warn("timed out waiting for running jobs")
	}
}

func (m *Manager) closeStores() {
	if m.accounts != nil {
		if err := m.accounts.Close(); err != nil {
			logger.Error("failed to close accounts service", "error", err)
		}
	}
	if err := m.database.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}

// Close stops the triggers and closes all services.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.stopCron()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.accounts.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
