// Package reset decides which subscriptions may be reset and executes the
// resets for one or many accounts.
package reset

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/api"
)

// Client is the subset of the remote API the service needs.
type Client interface {
	ListSubscriptions(ctx context.Context, apiKey string) ([]models.Subscription, error)
	ResetCredits(ctx context.Context, apiKey string, subscriptionID int64) (*api.ResetResult, error)
}

// HistoryRecorder persists executed resets.
type HistoryRecorder interface {
	RecordReset(ctx context.Context, rec models.ResetRecord) error
}

// Metrics counts reset outcomes.
type Metrics interface {
	ResetOutcome(resetType models.ResetType, status models.OutcomeStatus)
}

// Option customizes a Service.
type Option func(*Service)

// WithHistory records every executed reset.
func WithHistory(h HistoryRecorder) Option {
	return func(s *Service) { s.history = h }
}

// WithMetrics counts every executed reset.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone for zone-less remote timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.SetLocation(loc) }
}

// Service runs eligibility and execution for accounts.
type Service struct {
	client  Client
	history HistoryRecorder
	metrics Metrics
	log     *slog.Logger
	now     func() time.Time
	loc     atomic.Pointer[time.Location]
}

// New creates a reset service.
func New(client Client, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client: client,
		log:    logger.Or(log).With(slog.String("component", "reset")),
		now:    time.Now,
	}
	s.loc.Store(time.UTC)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLocation changes the zone used to read remote timestamps.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc.Store(loc)
	}
}

// Location returns the zone used to read remote timestamps.
func (s *Service) Location() *time.Location {
	return s.loc.Load()
}

// ProcessAccounts runs every account concurrently and returns results in
// the order of accounts.
func (s *Service) ProcessAccounts(ctx context.Context, accounts []models.Account, resetType models.ResetType) []models.AccountResetResult {
	results := make([]models.AccountResetResult, len(accounts))

	var g errgroup.Group
	for i := range accounts {
		g.Go(func() error {
			results[i] = s.ProcessAccount(ctx, accounts[i], resetType)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProcessAccount lists, filters and resets the subscriptions of one account.
// It never returns an error; failures are reflected in the result.
func (s *Service) ProcessAccount(ctx context.Context, account models.Account, resetType models.ResetType) (result models.AccountResetResult) {
	log := s.log.With(
		slog.String("account_id", account.ID),
		slog.String("reset_type", string(resetType)))

	result = models.AccountResetResult{
		AccountID:   account.ID,
		AccountName: account.DisplayName(),
		ResetType:   resetType,
		StartedAt:   s.now(),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("account run panicked", slog.Any("panic", r))
			result.Status = models.RunFailed
			result.Summary = fmt.Sprintf("internal error: %v", r)
		}
		result.FinishedAt = s.now()
		result.Duration = result.FinishedAt.Sub(result.StartedAt)
	}()

	subs, err := s.client.ListSubscriptions(ctx, account.APIKey)
	if err != nil {
		log.Warn("failed to list subscriptions", logger.Err(err))
		result.Status = models.RunFailed
		result.Summary = apperr.MessageOf(err)
		return result
	}
	if len(subs) == 0 {
		result.Status = models.RunSkipped
		result.Summary = "no subscriptions"
		return result
	}

	now := s.now()
	loc := s.Location()
	outcomes := make([]models.SubscriptionOutcome, len(subs))
	var eligible []int

	for i := range subs {
		sub := &subs[i]
		d := Evaluate(sub, resetType, now, loc)
		if d.Eligible {
			eligible = append(eligible, i)
			continue
		}
		log.Debug("subscription skipped",
			slog.Int64("subscription_id", sub.ID),
			slog.String("reason", string(d.Reason)),
			slog.String("detail", d.Message))
		outcomes[i] = models.SubscriptionOutcome{
			Status:         models.OutcomeSkipped,
			SkipReason:     d.Reason,
			SubscriptionID: sub.ID,
			PlanName:       sub.Name(),
			CreditsBefore:  sub.CurrentCredits,
			CreditsAfter:   sub.CurrentCredits,
			Message:        d.Message,
		}
	}

	var g errgroup.Group
	for _, idx := range eligible {
		g.Go(func() error {
			outcomes[idx] = s.resetOne(ctx, account, resetType, &subs[idx])
			return nil
		})
	}
	_ = g.Wait()

	result.Outcomes = outcomes
	Aggregate(&result)

	log.Info("account run finished",
		slog.String("status", string(result.Status)),
		slog.Int("success", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
		slog.Int("skipped", result.SkippedCount))

	return result
}

func (s *Service) resetOne(ctx context.Context, account models.Account, resetType models.ResetType, sub *models.Subscription) (outcome models.SubscriptionOutcome) {
	outcome = models.SubscriptionOutcome{
		SubscriptionID: sub.ID,
		PlanName:       sub.Name(),
		CreditsBefore:  sub.CurrentCredits,
		CreditsAfter:   sub.CurrentCredits,
	}
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = models.OutcomeFailed
			outcome.ErrorCode = string(apperr.CodeInternal)
			outcome.Message = fmt.Sprintf("internal error: %v", r)
		}
		s.record(ctx, account, resetType, outcome)
	}()

	res, err := s.client.ResetCredits(ctx, account.APIKey, sub.ID)
	if err != nil {
		s.log.Warn("reset failed",
			slog.String("account_id", account.ID),
			slog.Int64("subscription_id", sub.ID),
			logger.Err(err))
		outcome.Status = models.OutcomeFailed
		outcome.ErrorCode = string(apperr.CodeOf(err))
		outcome.Message = apperr.MessageOf(err)
		return outcome
	}

	outcome.Status = models.OutcomeSuccess
	if res != nil && res.NewCredits != nil {
		outcome.CreditsAfter = *res.NewCredits
		outcome.Message = fmt.Sprintf("credits %.2f -> %.2f", outcome.CreditsBefore, outcome.CreditsAfter)
	} else {
		outcome.Message = "server omitted credit detail"
	}

	s.log.Info("subscription reset",
		slog.String("account_id", account.ID),
		slog.Int64("subscription_id", sub.ID),
		slog.Float64("credits_before", outcome.CreditsBefore),
		slog.Float64("credits_after", outcome.CreditsAfter))
	return outcome
}

func (s *Service) record(ctx context.Context, account models.Account, resetType models.ResetType, o models.SubscriptionOutcome) {
	if s.metrics != nil {
		s.metrics.ResetOutcome(resetType, o.Status)
	}
	if s.history == nil {
		return
	}
	rec := models.ResetRecord{
		Timestamp:      s.now(),
		AccountID:      account.ID,
		ResetType:      resetType,
		Status:         o.Status,
		Message:        o.Message,
		SubscriptionID: o.SubscriptionID,
		CreditsBefore:  o.CreditsBefore,
		CreditsAfter:   o.CreditsAfter,
	}
	if err := s.history.RecordReset(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("failed to record reset history", logger.Err(err))
	}
}

// Aggregate fills the counters, status and summary of r from its outcomes.
func Aggregate(r *models.AccountResetResult) {
	r.SuccessCount, r.FailedCount, r.SkippedCount = 0, 0, 0
	var firstFailure string
	for _, o := range r.Outcomes {
		switch o.Status {
		case models.OutcomeSuccess:
			r.SuccessCount++
		case models.OutcomeFailed:
			r.FailedCount++
			if firstFailure == "" {
				firstFailure = o.Message
			}
		case models.OutcomeSkipped:
			r.SkippedCount++
		}
	}

	switch {
	case r.SuccessCount > 0 && r.FailedCount == 0:
		r.Status = models.RunSuccess
		r.Summary = fmt.Sprintf("%d reset, %d skipped", r.SuccessCount, r.SkippedCount)
	case r.SuccessCount > 0 && r.FailedCount > 0:
		r.Status = models.RunPartial
		r.Summary = fmt.Sprintf("%d reset, %d failed: %s", r.SuccessCount, r.FailedCount, firstFailure)
	case r.FailedCount > 0:
		r.Status = models.RunFailed
		r.Summary = fmt.Sprintf("%d failed: %s", r.FailedCount, firstFailure)
	default:
		r.Status = models.RunSkipped
		if o, ok := DominantSkip(r.Outcomes); ok {
			r.Summary = o.Message
		} else if r.Summary == "" {
			r.Summary = "nothing to reset"
		}
	}
}
