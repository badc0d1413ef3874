package reset

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// Cooldown is the minimum gap between a previous reset and a manual one.
const Cooldown = 5 * time.Hour

// Decision is the result of evaluating one subscription.
type Decision struct {
	NextEligible time.Time
	Reason       models.SkipReason
	Message      string
	Eligible     bool
}

// CooldownState reports whether sub is inside the manual cooldown at now.
// Elapsed time of exactly Cooldown is outside it.
func CooldownState(sub *models.Subscription, now time.Time, loc *time.Location) (active bool, remaining time.Duration, next time.Time) {
	last, ok := sub.LastResetAt(loc)
	if !ok {
		return false, 0, time.Time{}
	}
	next = last.Add(Cooldown)
	if elapsed := now.Sub(last); elapsed < Cooldown {
		return true, Cooldown - elapsed, next
	}
	return false, 0, next
}

// Evaluate applies the eligibility rules in order. The first failing rule wins.
func Evaluate(sub *models.Subscription, resetType models.ResetType, now time.Time, loc *time.Location) Decision {
	if sub.IsFreeTier() {
		return Decision{
			Reason:  models.SkipNonPaidTier,
			Message: fmt.Sprintf("non-paid tier %q is never reset", sub.Name()),
		}
	}

	if sub.IsPayPerUse() {
		return Decision{Reason: models.SkipProtectedPlan, Message: "protected: pay-per-use"}
	}

	if resetType == models.ResetManual {
		if active, remaining, next := CooldownState(sub, now, loc); active {
			last, _ := sub.LastResetAt(loc)
			return Decision{
				Reason:       models.SkipCooldownActive,
				NextEligible: next,
				Message: fmt.Sprintf("cooldown active: last reset %s, eligible in %s at %s",
					humanize.RelTime(last, now, "ago", "from now"),
					remaining.Round(time.Minute), next.In(loc).Format("15:04")),
			}
		}
	}

	if have, need := sub.RemainingResets(), resetType.RequiredResets(); have < need {
		return Decision{
			Reason: models.SkipInsufficientRemaining,
			Message: fmt.Sprintf("insufficient remaining resets: %s requires %d, %d left",
				resetType, need, have),
		}
	}

	if !sub.IsMonthly() {
		return Decision{
			Reason:  models.SkipInactiveOrWrongPlan,
			Message: fmt.Sprintf("plan type %q is not %s", sub.Plan.Type, models.PlanMonthly),
		}
	}
	if !sub.IsActive {
		return Decision{Reason: models.SkipInactiveOrWrongPlan, Message: "subscription is inactive"}
	}

	return Decision{Eligible: true}
}

// skipPriority orders skip reasons for the account-level summary.
func skipPriority(r models.SkipReason) int {
	switch r {
	case models.SkipCooldownActive:
		return 3
	case models.SkipProtectedPlan:
		return 2
	case models.SkipInsufficientRemaining:
		return 1
	default:
		return 0
	}
}

// DominantSkip returns the skipped outcome whose reason best explains a run
// that did nothing.
func DominantSkip(outcomes []models.SubscriptionOutcome) (models.SubscriptionOutcome, bool) {
	var best models.SubscriptionOutcome
	found := false
	for _, o := range outcomes {
		if o.Status != models.OutcomeSkipped {
			continue
		}
		if !found || skipPriority(o.SkipReason) > skipPriority(best.SkipReason) {
			best = o
			found = true
		}
	}
	return best, found
}

// PrimarySubscription picks the subscription shown in status views: the
// resettable one with the highest credit limit, lowest ID on ties.
func PrimarySubscription(subs []models.Subscription) (*models.Subscription, bool) {
	var candidates []*models.Subscription
	for i := range subs {
		s := &subs[i]
		if s.IsMonthly() && s.IsActive && !s.IsFreeTier() && !s.IsPayPerUse() {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	slices.SortFunc(candidates, func(a, b *models.Subscription) int {
		if c := cmp.Compare(b.Plan.CreditLimit, a.Plan.CreditLimit); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return candidates[0], true
}
