package app

import (
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

// TickMsg is sent periodically to expire toasts and refresh the status.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StatusLoadedMsg carries a fresh dashboard status.
type StatusLoadedMsg struct {
	Error  error
	Status services.Status
}

// LogsLoadedMsg carries the recent audit entries.
type LogsLoadedMsg struct {
	Error   error
	Entries []models.AuditEntry
}

// HistoryLoadedMsg carries the reset history of one account.
type HistoryLoadedMsg struct {
	Error     error
	AccountID string
	Records   []models.ResetRecord
}

// ManualResetResultMsg carries the outcome of a manual reset.
type ManualResetResultMsg struct {
	Error  error
	Result scheduler.ManualResult
}

// ScheduleToggledMsg carries the schedule after enabling or disabling it.
type ScheduleToggledMsg struct {
	Error error
	View  services.ScheduleView
}

// RunFinishedMsg is forwarded to the tabs after any reset run.
type RunFinishedMsg struct {
	Summary scheduler.RunSummary
}

// AccountSelectedMsg is sent by the dashboard when the highlighted account changes.
type AccountSelectedMsg struct {
	AccountID string
}

// AccountsLoadedMsg carries the registered accounts with masked keys.
type AccountsLoadedMsg struct {
	Accounts []models.AccountView
}

// AddAccountMsg asks to register an account.
type AddAccountMsg struct {
	Name   string
	APIKey string
}

// SetAccountEnabledMsg asks to enable or disable an account.
type SetAccountEnabledMsg struct {
	ID      string
	Enabled bool
}

// DeleteAccountMsg asks to remove an account.
type DeleteAccountMsg struct {
	ID   string
	Name string
}

// AccountSavedMsg carries the outcome of an account change.
type AccountSavedMsg struct {
	Error   error
	Action  string
	Account models.AccountView
}

// RefreshMsg requests a reload of everything shown.
type RefreshMsg struct{}

type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

type RemoveNotificationMsg struct {
	ID string
}

// ServiceEventMsg wraps an event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg hands the subscription channel to the model.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}
