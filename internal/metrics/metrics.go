// Package metrics exposes Prometheus counters for resets and scheduling.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

const namespace = "credit_reset"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	resets       *prometheus.CounterVec
	rateLimited  prometheus.Counter
	schedulerRun *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_resets_total",
			Help:      "Executed subscription resets by reset type and outcome.",
		}, []string{"reset_type", "status"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Outbound requests rejected by the local token bucket.",
		}),
		schedulerRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_triggers_total",
			Help:      "Scheduler trigger decisions by trigger and result.",
		}, []string{"trigger", "result"}),
	}

	if reg != nil {
		reg.MustRegister(m.resets, m.rateLimited, m.schedulerRun)
	}
	return m
}

// ResetOutcome counts one executed subscription reset.
func (m *Metrics) ResetOutcome(resetType models.ResetType, status models.OutcomeStatus) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(string(resetType), string(status)).Inc()
}

// RateLimited counts one rejected outbound request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// SchedulerRun counts one scheduler decision.
func (m *Metrics) SchedulerRun(trigger, result string) {
	if m == nil {
		return
	}
	m.schedulerRun.WithLabelValues(trigger, result).Inc()
}
