// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/components"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	NotificationSuccess NotificationType = iota
	NotificationError
	NotificationWarning
	NotificationInfo
	// NotificationLoading is shown with a spinner and never expires on its own.
	NotificationLoading
)

// LoadingNotificationID is the fixed ID for loading notifications.
const LoadingNotificationID = "__loading__"

// maxNotifications caps the toast stack.
const maxNotifications = 10

func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing toast.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

// IsExpired reports whether the notification outlived its duration.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// Resource names accepted by SetLoading.
const (
	ResourceInitial  = "initial"
	ResourceStatus   = "status"
	ResourceLogs     = "logs"
	ResourceReset    = "reset"
	ResourceHistory  = "history"
	ResourceAccounts = "accounts"
)

// LoadingState tracks which resources are in flight.
type LoadingState struct {
	Initial  bool
	Status   bool
	Logs     bool
	Reset    bool
	History  bool
	Accounts bool
}

// State is shared between the root model and the tabs.
type State struct {
	LastUpdated time.Time
	Status      *services.Status
	History     map[string][]models.ResetRecord
	Logs        []models.AuditEntry
	// Accounts is nil until the first list arrives.
	Accounts []models.AccountView

	notifications []Notification
	Loading       LoadingState

	SelectedAccountIndex int
	notificationSeq      int

	mu sync.RWMutex
}

// NewState creates the initial state with the first load pending.
func NewState() *State {
	return &State{
		History:       make(map[string][]models.ResetRecord),
		notifications: make([]Notification, 0),
		Loading:       LoadingState{Initial: true},
	}
}

// SetLoading sets the loading flag of one resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case ResourceInitial:
		s.Loading.Initial = loading
	case ResourceStatus:
		s.Loading.Status = loading
	case ResourceLogs:
		s.Loading.Logs = loading
	case ResourceReset:
		s.Loading.Reset = loading
	case ResourceHistory:
		s.Loading.History = loading
	case ResourceAccounts:
		s.Loading.Accounts = loading
	}
}

// AnyLoading reports whether any resource is in flight.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l := s.Loading
	return l.Initial || l.Status || l.Logs || l.Reset || l.History || l.Accounts
}

// Activity returns the most important resource in flight.
func (s *State) Activity() components.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var acts []components.Activity
	if s.Loading.Logs {
		acts = append(acts, components.ActivityLogs)
	}
	if s.Loading.History {
		acts = append(acts, components.ActivityHistory)
	}
	if s.Loading.Accounts {
		acts = append(acts, components.ActivityAccounts)
	}
	if s.Loading.Initial || s.Loading.Status {
		acts = append(acts, components.ActivityStatus)
	}
	if s.Loading.Reset {
		acts = append(acts, components.ActivityReset)
	}
	return components.Busiest(acts...)
}

func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// IsResetting reports whether a manual reset is running.
func (s *State) IsResetting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Reset
}

// SetStatus stores a fresh status and keeps the selection in range.
func (s *State) SetStatus(st services.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = &st
	s.LastUpdated = time.Now()
	if s.SelectedAccountIndex >= len(st.Accounts) {
		s.SelectedAccountIndex = max(len(st.Accounts)-1, 0)
	}
}

func (s *State) GetStatus() *services.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetAccounts returns a copy of the per-account statuses.
func (s *State) GetAccounts() []services.AccountStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Status == nil {
		return nil
	}
	accounts := make([]services.AccountStatus, len(s.Status.Accounts))
	copy(accounts, s.Status.Accounts)
	return accounts
}

// SelectedAccount returns the highlighted account, if any.
func (s *State) SelectedAccount() (services.AccountStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Status == nil || s.SelectedAccountIndex >= len(s.Status.Accounts) {
		return services.AccountStatus{}, false
	}
	return s.Status.Accounts[s.SelectedAccountIndex], true
}

func (s *State) GetSelectedAccountIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedAccountIndex
}

// SetSelectedAccountIndex updates the highlighted account.
func (s *State) SetSelectedAccountIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedAccountIndex = idx
}

// SetLogs replaces the audit entries.
func (s *State) SetLogs(entries []models.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Logs = entries
}

// GetLogs returns a copy of the audit entries, newest first.
func (s *State) GetLogs() []models.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]models.AuditEntry, len(s.Logs))
	copy(logs, s.Logs)
	return logs
}

// SetAccountList stores the registered accounts.
func (s *State) SetAccountList(accounts []models.AccountView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accounts == nil {
		accounts = []models.AccountView{}
	}
	s.Accounts = accounts
}

// AccountList returns a copy of the registered accounts and whether they
// have been loaded yet.
func (s *State) AccountList() ([]models.AccountView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Accounts == nil {
		return nil, false
	}
	out := make([]models.AccountView, len(s.Accounts))
	copy(out, s.Accounts)
	return out, true
}

// SetHistory stores the reset history of one account.
func (s *State) SetHistory(accountID string, records []models.ResetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History[accountID] = records
}

func (s *State) GetHistory(accountID string) []models.ResetRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.History[accountID]
}

// AddNotification adds a toast and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	now := time.Now()
	id := fmt.Sprintf("%s-%d", now.Format("20060102150405"), s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: now,
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications drops expired toasts.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// GetNotifications returns the toasts that have not expired.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(all []Notification) []Notification {
	active := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification shows or updates the single loading toast.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading toast.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// TimeSinceUpdate returns how long ago the status was refreshed.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
