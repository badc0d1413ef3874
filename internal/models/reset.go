package models

import "time"

// ResetType classifies why a reset was requested.
type ResetType string

const (
	// ResetFirst is the first scheduled window of the day.
	ResetFirst ResetType = "FIRST"
	// ResetSecond is the second scheduled window of the day.
	ResetSecond ResetType = "SECOND"
	// ResetManual is an explicit user request.
	ResetManual ResetType = "MANUAL"
)

// Scheduled reports whether the reset type comes from the scheduler.
func (t ResetType) Scheduled() bool {
	return t == ResetFirst || t == ResetSecond
}

// RequiredResets is the minimum remaining reset count for this type.
// FIRST keeps one reset in reserve for the second window.
func (t ResetType) RequiredResets() int {
	if t == ResetFirst {
		return 2
	}
	return 1
}

// OutcomeStatus is the result of one subscription within a run.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeFailed  OutcomeStatus = "FAILED"
	OutcomeSkipped OutcomeStatus = "SKIPPED"
)

// SkipReason tags why a subscription was left alone.
type SkipReason string

const (
	SkipNonPaidTier           SkipReason = "non-paid-tier"
	SkipProtectedPlan         SkipReason = "protected-plan"
	SkipCooldownActive        SkipReason = "cooldown-active"
	SkipInsufficientRemaining SkipReason = "insufficient-remaining-count"
	SkipInactiveOrWrongPlan   SkipReason = "inactive-or-wrong-plan"
)

// SubscriptionOutcome records what happened to one subscription.
type SubscriptionOutcome struct {
	Status         OutcomeStatus `json:"status"`
	SkipReason     SkipReason    `json:"skipReason,omitempty"`
	PlanName       string        `json:"planName"`
	Message        string        `json:"message"`
	ErrorCode      string        `json:"errorCode,omitempty"`
	SubscriptionID int64         `json:"subscriptionId"`
	CreditsBefore  float64       `json:"creditsBefore"`
	CreditsAfter   float64       `json:"creditsAfter"`
}

// RunStatus is the aggregated status of one account run.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
	RunSkipped RunStatus = "SKIPPED"
)

// AccountResetResult aggregates all outcomes for one account.
type AccountResetResult struct {
	StartedAt    time.Time             `json:"startedAt"`
	FinishedAt   time.Time             `json:"finishedAt"`
	AccountID    string                `json:"accountId"`
	AccountName  string                `json:"accountName"`
	ResetType    ResetType             `json:"resetType"`
	Status       RunStatus             `json:"status"`
	Summary      string                `json:"summary"`
	Outcomes     []SubscriptionOutcome `json:"outcomes"`
	Duration     time.Duration         `json:"duration"`
	SuccessCount int                   `json:"successCount"`
	FailedCount  int                   `json:"failedCount"`
	SkippedCount int                   `json:"skippedCount"`
}
