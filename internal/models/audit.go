package models

import (
	"encoding/json"
	"time"
)

// AuditLevel is the severity of an audit entry.
type AuditLevel string

const (
	AuditInfo    AuditLevel = "INFO"
	AuditWarning AuditLevel = "WARN"
	AuditError   AuditLevel = "ERROR"
)

// AuditEntry is one line of the persisted audit trail.
type AuditEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     AuditLevel      `json:"level"`
	Event     string          `json:"event"`
	AccountID string          `json:"accountId,omitempty"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	ID        int64           `json:"id"`
}

// ResetRecord is one executed subscription reset, kept for history charts.
type ResetRecord struct {
	Timestamp      time.Time     `json:"timestamp"`
	AccountID      string        `json:"accountId"`
	ResetType      ResetType     `json:"resetType"`
	Status         OutcomeStatus `json:"status"`
	Message        string        `json:"message,omitempty"`
	ID             int64         `json:"id"`
	SubscriptionID int64         `json:"subscriptionId"`
	CreditsBefore  float64       `json:"creditsBefore"`
	CreditsAfter   float64       `json:"creditsAfter"`
}
