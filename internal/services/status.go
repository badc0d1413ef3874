package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/reset"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

// statusConcurrency bounds the accounts queried at once by GetStatus.
const statusConcurrency = 4

// AccountStatus is the live view of one enabled account.
type AccountStatus struct {
	Usage             *models.Usage        `json:"usage,omitempty"`
	Primary           *models.Subscription `json:"primary,omitempty"`
	NextEligible      *time.Time           `json:"nextEligible,omitempty"`
	NextReset         *time.Time           `json:"nextReset,omitempty"`
	Error             string               `json:"error,omitempty"`
	ErrorCode         apperr.Code          `json:"errorCode,omitempty"`
	NextResetType     models.ResetType     `json:"nextResetType,omitempty"`
	Account           models.AccountView   `json:"account"`
	Subscriptions     int                  `json:"subscriptions"`
	RemainingResets   int                  `json:"remainingResets"`
	CooldownRemaining time.Duration        `json:"cooldownRemaining"`
	Connected         bool                 `json:"connected"`
	CooldownActive    bool                 `json:"cooldownActive"`
}

// Status is the dashboard summary across all enabled accounts.
type Status struct {
	CheckedAt     time.Time             `json:"checkedAt"`
	NextReset     *time.Time            `json:"nextReset,omitempty"`
	LastRun       *scheduler.RunSummary `json:"lastRun,omitempty"`
	NextResetType models.ResetType      `json:"nextResetType,omitempty"`
	Schedule      models.ScheduleConfig `json:"schedule"`
	Next          scheduler.NextTimes   `json:"next"`
	Accounts      []AccountStatus       `json:"accounts"`
	RateTokens    int                   `json:"rateTokens"`
	Connected     bool                  `json:"connected"`
}

// GetStatus queries every enabled account and combines the results with the
// schedule. Per-account failures are reported inside the status, not as an error.
func (m *Manager) GetStatus(ctx context.Context) (Status, error) {
	schedule, err := m.database.GetScheduleConfig(ctx)
	if err != nil {
		return Status{}, asAppErr(err, "failed to load schedule")
	}
	loc, err := schedule.Location()
	if err != nil {
		loc = time.UTC
	}

	st := Status{
		CheckedAt: m.now(),
		Schedule:  schedule,
		Next:      m.scheduler.NextScheduledTimes(),
		LastRun:   m.scheduler.LastRun(),
	}

	enabled := m.accounts.EnabledAccounts()
	st.Accounts = make([]AccountStatus, len(enabled))

	var g errgroup.Group
	g.SetLimit(statusConcurrency)
	for i := range enabled {
		g.Go(func() error {
			st.Accounts[i] = m.accountStatus(ctx, enabled[i], st.Next, st.CheckedAt, loc)
			return nil
		})
	}
	_ = g.Wait()

	for i := range st.Accounts {
		a := &st.Accounts[i]
		if a.Connected {
			st.Connected = true
		}
		if a.NextReset != nil && (st.NextReset == nil || a.NextReset.Before(*st.NextReset)) {
			st.NextReset = a.NextReset
			st.NextResetType = a.NextResetType
		}
	}
	st.RateTokens = m.RateTokens()

	return st, nil
}

func (m *Manager) accountStatus(ctx context.Context, acc models.Account, next scheduler.NextTimes, now time.Time, loc *time.Location) AccountStatus {
	as := AccountStatus{Account: acc.View()}
	log := m.log.With(slog.String("account", acc.DisplayName()))

	usage, err := m.client.GetUsage(ctx, acc.APIKey)
	if err != nil {
		log.Debug("usage query failed", logger.Err(err))
		as.Error, as.ErrorCode = apperr.MessageOf(err), apperr.CodeOf(err)
		return as
	}
	as.Usage = usage
	as.Connected = true

	subs, err := m.client.ListSubscriptions(ctx, acc.APIKey)
	if err != nil {
		log.Debug("subscription query failed", logger.Err(err))
		as.Error, as.ErrorCode = apperr.MessageOf(err), apperr.CodeOf(err)
		return as
	}
	as.Subscriptions = len(subs)

	primary, ok := reset.PrimarySubscription(subs)
	if !ok {
		return as
	}
	as.Primary = primary
	as.RemainingResets = primary.RemainingResets()

	active, remaining, eligibleAt := reset.CooldownState(primary, now, loc)
	as.CooldownActive = active
	as.CooldownRemaining = remaining
	if active {
		as.NextEligible = &eligibleAt
	}

	var first, second time.Time
	if next.First != nil {
		first = *next.First
	}
	if next.Second != nil {
		second = *next.Second
	}
	if at, typ, ok := scheduler.NextReset(first, second, as.RemainingResets); ok {
		as.NextReset = &at
		as.NextResetType = typ
	}
	return as
}
