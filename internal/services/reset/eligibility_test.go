package reset

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

var testNow = time.Date(2025, 10, 18, 18, 55, 0, 0, time.UTC)

func monthly(id int64, resets int) models.Subscription {
	return models.Subscription{
		ID:             id,
		PlanName:       "PRO",
		IsActive:       true,
		ResetTimes:     resets,
		CurrentCredits: 5,
		Plan:           models.Plan{Name: "PRO", Type: models.PlanMonthly, CreditLimit: 50},
	}
}

func resetAgo(d time.Duration) *string {
	s := testNow.Add(-d).Format(time.RFC3339)
	return &s
}

func TestEvaluate_PayPerUseNeverEligible(t *testing.T) {
	types := []models.ResetType{models.ResetFirst, models.ResetSecond, models.ResetManual}
	planTypes := []models.PlanType{models.PlanPayPerUse, "pay_per_use", " Pay_Per_Use "}

	for _, rt := range types {
		for _, pt := range planTypes {
			for resets := -1; resets <= 5; resets++ {
				for _, active := range []bool{true, false} {
					for _, last := range []*string{nil, resetAgo(time.Hour), resetAgo(10 * time.Hour)} {
						sub := monthly(1, resets)
						sub.Plan.Type = pt
						sub.IsActive = active
						sub.LastCreditReset = last

						d := Evaluate(&sub, rt, testNow, time.UTC)
						name := fmt.Sprintf("%s/%q/%d/%v", rt, pt, resets, active)
						assert.False(t, d.Eligible, name)
						assert.Equal(t, models.SkipProtectedPlan, d.Reason, name)
					}
				}
			}
		}
	}
}

func TestEvaluate_CountThresholds(t *testing.T) {
	tests := []struct {
		resetType models.ResetType
		resets    int
		eligible  bool
	}{
		{models.ResetFirst, 2, true},
		{models.ResetFirst, 1, false},
		{models.ResetFirst, 0, false},
		{models.ResetSecond, 2, true},
		{models.ResetSecond, 1, true},
		{models.ResetSecond, 0, false},
		{models.ResetManual, 1, true},
		{models.ResetManual, 0, false},
		{models.ResetFirst, 9, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.resetType, tt.resets), func(t *testing.T) {
			sub := monthly(1, tt.resets)
			d := Evaluate(&sub, tt.resetType, testNow, time.UTC)
			assert.Equal(t, tt.eligible, d.Eligible)
			if !tt.eligible {
				assert.Equal(t, models.SkipInsufficientRemaining, d.Reason)
				assert.Contains(t, d.Message, fmt.Sprintf("requires %d", tt.resetType.RequiredResets()))
			}
		})
	}
}

func TestEvaluate_CooldownBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		eligible bool
	}{
		{"4h59m", 4*time.Hour + 59*time.Minute, false},
		{"1s", time.Second, false},
		{"exactly 5h", 5 * time.Hour, true},
		{"5h00m01s", 5*time.Hour + time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := monthly(1, 2)
			sub.LastCreditReset = resetAgo(tt.elapsed)

			d := Evaluate(&sub, models.ResetManual, testNow, time.UTC)
			assert.Equal(t, tt.eligible, d.Eligible)
			if !tt.eligible {
				assert.Equal(t, models.SkipCooldownActive, d.Reason)
				assert.Equal(t, testNow.Add(-tt.elapsed).Add(Cooldown), d.NextEligible)
				assert.Contains(t, d.Message, "cooldown active")
			}
		})
	}
}

func TestEvaluate_CooldownOnlyForManual(t *testing.T) {
	sub := monthly(1, 2)
	sub.LastCreditReset = resetAgo(time.Minute)

	assert.True(t, Evaluate(&sub, models.ResetFirst, testNow, time.UTC).Eligible)
	assert.True(t, Evaluate(&sub, models.ResetSecond, testNow, time.UTC).Eligible)
	assert.False(t, Evaluate(&sub, models.ResetManual, testNow, time.UTC).Eligible)
}

func TestEvaluate_ZonelessTimestampUsesLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	// Read in Shanghai this is 12:55 UTC, six hours before testNow.
	last := "2025-10-18T20:55:00"
	sub := monthly(1, 2)
	sub.LastCreditReset = &last

	d := Evaluate(&sub, models.ResetManual, testNow, shanghai)
	assert.True(t, d.Eligible)

	d = Evaluate(&sub, models.ResetManual, testNow, time.UTC)
	assert.Equal(t, models.SkipCooldownActive, d.Reason)
}

func TestEvaluate_RuleOrder(t *testing.T) {
	free := monthly(1, 2)
	free.PlanName = "FREE"
	free.Plan.Type = models.PlanPayPerUse
	assert.Equal(t, models.SkipNonPaidTier, Evaluate(&free, models.ResetFirst, testNow, time.UTC).Reason)

	inactive := monthly(2, 2)
	inactive.IsActive = false
	assert.Equal(t, models.SkipInactiveOrWrongPlan, Evaluate(&inactive, models.ResetFirst, testNow, time.UTC).Reason)

	unknown := monthly(3, 2)
	unknown.Plan.Type = "YEARLY"
	assert.Equal(t, models.SkipInactiveOrWrongPlan, Evaluate(&unknown, models.ResetFirst, testNow, time.UTC).Reason)

	// Count is checked before plan type.
	unknownNoResets := monthly(4, 0)
	unknownNoResets.Plan.Type = "YEARLY"
	assert.Equal(t, models.SkipInsufficientRemaining, Evaluate(&unknownNoResets, models.ResetFirst, testNow, time.UTC).Reason)
}

func TestDominantSkip(t *testing.T) {
	outcomes := []models.SubscriptionOutcome{
		{Status: models.OutcomeSkipped, SkipReason: models.SkipNonPaidTier, Message: "free"},
		{Status: models.OutcomeSkipped, SkipReason: models.SkipInsufficientRemaining, Message: "count"},
		{Status: models.OutcomeSkipped, SkipReason: models.SkipProtectedPlan, Message: "ppu"},
		{Status: models.OutcomeSuccess},
	}
	o, ok := DominantSkip(outcomes)
	require.True(t, ok)
	assert.Equal(t, "ppu", o.Message)

	outcomes = append(outcomes, models.SubscriptionOutcome{Status: models.OutcomeSkipped, SkipReason: models.SkipCooldownActive, Message: "wait"})
	o, _ = DominantSkip(outcomes)
	assert.Equal(t, "wait", o.Message)

	_, ok = DominantSkip([]models.SubscriptionOutcome{{Status: models.OutcomeFailed}})
	assert.False(t, ok)
}

func TestPrimarySubscription(t *testing.T) {
	big := monthly(5, 2)
	big.Plan.CreditLimit = 100
	tie := monthly(3, 2)
	tie.Plan.CreditLimit = 100
	small := monthly(1, 2)
	ppu := monthly(2, 2)
	ppu.Plan.Type = models.PlanPayPerUse
	ppu.Plan.CreditLimit = 1000
	free := monthly(4, 2)
	free.PlanName = "FREE"
	free.Plan.CreditLimit = 500

	primary, ok := PrimarySubscription([]models.Subscription{small, big, ppu, free, tie})
	require.True(t, ok)
	assert.Equal(t, int64(3), primary.ID)

	_, ok = PrimarySubscription([]models.Subscription{ppu, free})
	assert.False(t, ok)

	_, ok = PrimarySubscription(nil)
	assert.False(t, ok)
}
