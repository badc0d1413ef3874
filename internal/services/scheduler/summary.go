package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// RunSummary aggregates one run across all accounts.
type RunSummary struct {
	StartedAt    time.Time                   `json:"startedAt"`
	FinishedAt   time.Time                   `json:"finishedAt"`
	Trigger      string                      `json:"trigger"`
	ResetType    models.ResetType            `json:"resetType"`
	FirstFailure string                      `json:"firstFailure,omitempty"`
	FirstSkip    string                      `json:"firstSkip,omitempty"`
	Results      []models.AccountResetResult `json:"results"`
	Succeeded    int                         `json:"succeeded"`
	Partial      int                         `json:"partial"`
	Failed       int                         `json:"failed"`
	Skipped      int                         `json:"skipped"`
	Resets       int                         `json:"resets"`
}

// Summarize counts account statuses and remembers the first failure and skip.
func Summarize(trigger string, resetType models.ResetType, results []models.AccountResetResult) RunSummary {
	s := RunSummary{Trigger: trigger, ResetType: resetType, Results: results}
	for i := range results {
		r := &results[i]
		if s.StartedAt.IsZero() || (!r.StartedAt.IsZero() && r.StartedAt.Before(s.StartedAt)) {
			s.StartedAt = r.StartedAt
		}
		if r.FinishedAt.After(s.FinishedAt) {
			s.FinishedAt = r.FinishedAt
		}
		s.Resets += r.SuccessCount

		switch r.Status {
		case models.RunSuccess:
			s.Succeeded++
		case models.RunPartial:
			s.Partial++
			s.noteFailure(r)
		case models.RunFailed:
			s.Failed++
			s.noteFailure(r)
		default:
			s.Skipped++
			if s.FirstSkip == "" {
				s.FirstSkip = prefixed(r, r.Summary)
			}
		}
	}
	return s
}

func (s *RunSummary) noteFailure(r *models.AccountResetResult) {
	if s.FirstFailure == "" {
		s.FirstFailure = prefixed(r, r.Summary)
	}
}

func prefixed(r *models.AccountResetResult, msg string) string {
	if r.AccountName == "" {
		return msg
	}
	return r.AccountName + ": " + msg
}

// Accounts returns the number of accounts in the run.
func (s RunSummary) Accounts() int {
	return len(s.Results)
}

// Level maps the summary to an audit level.
func (s RunSummary) Level() models.AuditLevel {
	switch {
	case s.Failed > 0 && s.Succeeded == 0 && s.Partial == 0:
		return models.AuditError
	case s.Failed > 0 || s.Partial > 0:
		return models.AuditWarning
	default:
		return models.AuditInfo
	}
}

// Message is the one-line notification text.
func (s RunSummary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d ok, %d partial, %d failed, %d skipped", s.Succeeded, s.Partial, s.Failed, s.Skipped)
	if s.FirstFailure != "" {
		b.WriteString("; first failure: " + s.FirstFailure)
	} else if s.Skipped > 0 && s.FirstSkip != "" {
		b.WriteString("; skipped: " + s.FirstSkip)
	}
	return b.String()
}

// ManualResult is the reduced outcome of a manual reset.
type ManualResult struct {
	Message string     `json:"message"`
	Summary RunSummary `json:"summary"`
	Success bool       `json:"success"`
}

// ManualOutcome reduces a manual run to a success flag and message.
func ManualOutcome(s RunSummary) ManualResult {
	anySuccess := s.Succeeded+s.Partial > 0
	anyFailure := s.Failed+s.Partial > 0

	r := ManualResult{Summary: s}
	switch {
	case anySuccess && !anyFailure:
		r.Success = true
		r.Message = fmt.Sprintf("reset %d subscription(s) across %d account(s)", s.Resets, s.Succeeded)
	case anySuccess && anyFailure:
		r.Success = true
		r.Message = fmt.Sprintf("partial: %d reset, %d account(s) with failures: %s",
			s.Resets, s.Failed+s.Partial, s.FirstFailure)
	case anyFailure:
		r.Message = "reset failed: " + s.FirstFailure
	default:
		r.Message = s.FirstSkip
		if r.Message == "" {
			r.Message = "nothing to reset"
		}
	}
	return r
}

// NextReset picks the upcoming window given the remaining reset count of the
// primary subscription. The first window needs two remaining resets.
func NextReset(first, second time.Time, remaining int) (time.Time, models.ResetType, bool) {
	switch {
	case remaining >= 2:
		switch {
		case first.IsZero() && second.IsZero():
			return time.Time{}, "", false
		case second.IsZero() || (!first.IsZero() && !second.Before(first)):
			return first, models.ResetFirst, true
		default:
			return second, models.ResetSecond, true
		}
	case remaining == 1:
		if second.IsZero() {
			return time.Time{}, "", false
		}
		return second, models.ResetSecond, true
	default:
		return time.Time{}, "", false
	}
}
