package models

import (
	"fmt"
	"strings"
	"time"
)

// PlanType is the billing category reported for a subscription plan.
type PlanType string

const (
	// PlanMonthly is a recurring plan whose credits may be reset.
	PlanMonthly PlanType = "MONTHLY"
	// PlanPayPerUse is a metered plan. It is never reset.
	PlanPayPerUse PlanType = "PAY_PER_USE"
)

// MaxDailyResets is the observed ceiling of resets per subscription per day.
const MaxDailyResets = 2

const freeTierMarker = "FREE"

// Plan describes the plan a subscription belongs to.
type Plan struct {
	Name         string   `json:"subscriptionName"`
	Type         PlanType `json:"planType"`
	BillingCycle string   `json:"billingCycle,omitempty"`
	ID           int64    `json:"id"`
	CreditLimit  float64  `json:"creditLimit"`
	Cost         float64  `json:"cost,omitempty"`
}

// Subscription is the remote subscription resource as returned by the API.
type Subscription struct {
	LastCreditReset *string `json:"lastCreditReset"`
	PlanName        string  `json:"subscriptionPlanName"`
	Status          string  `json:"subscriptionStatus,omitempty"`
	StartDate       string  `json:"startDate,omitempty"`
	EndDate         string  `json:"endDate,omitempty"`
	Plan            Plan    `json:"subscriptionPlan"`
	ID              int64   `json:"id"`
	CurrentCredits  float64 `json:"currentCredits"`
	ResetTimes      int     `json:"resetTimes"`
	RemainingDays   int     `json:"remainingDays,omitempty"`
	IsActive        bool    `json:"isActive"`
}

// Name returns the plan name, preferring the subscription-level field.
func (s *Subscription) Name() string {
	if s.PlanName != "" {
		return s.PlanName
	}
	return s.Plan.Name
}

// IsFreeTier reports whether either plan name marks the non-paid tier.
func (s *Subscription) IsFreeTier() bool {
	return strings.Contains(strings.ToUpper(s.PlanName), freeTierMarker) ||
		strings.Contains(strings.ToUpper(s.Plan.Name), freeTierMarker)
}

// IsPayPerUse reports whether the plan category is PAY_PER_USE.
func (s *Subscription) IsPayPerUse() bool {
	return strings.EqualFold(strings.TrimSpace(string(s.Plan.Type)), string(PlanPayPerUse))
}

// IsMonthly reports whether the plan category is MONTHLY.
func (s *Subscription) IsMonthly() bool {
	return strings.EqualFold(strings.TrimSpace(string(s.Plan.Type)), string(PlanMonthly))
}

// RemainingResets returns the reset count clamped to [0, MaxDailyResets].
func (s *Subscription) RemainingResets() int {
	return min(max(s.ResetTimes, 0), MaxDailyResets)
}

// CreditPercent returns remaining credits as a percentage of the plan limit.
func (s *Subscription) CreditPercent() float64 {
	if s.Plan.CreditLimit <= 0 {
		return 0
	}
	return s.CurrentCredits / s.Plan.CreditLimit * 100
}

// LastResetAt parses LastCreditReset. Zone-less values are read in loc.
func (s *Subscription) LastResetAt(loc *time.Location) (time.Time, bool) {
	if s.LastCreditReset == nil || strings.TrimSpace(*s.LastCreditReset) == "" {
		return time.Time{}, false
	}
	t, err := ParseTimestamp(*s.LastCreditReset, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the timestamp shapes the remote API emits.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Usage is the aggregate usage snapshot of one API key.
type Usage struct {
	KeyID            string         `json:"keyId,omitempty"`
	Name             string         `json:"name,omitempty"`
	SubscriptionName string         `json:"subscriptionName,omitempty"`
	Subscriptions    []Subscription `json:"subscriptionEntityList,omitempty"`
	ID               int64          `json:"id,omitempty"`
	SubscriptionID   int64          `json:"subscriptionId,omitempty"`
	CurrentCredits   float64        `json:"currentCredits"`
	CreditLimit      float64        `json:"creditLimit"`
}
