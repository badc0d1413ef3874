package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/accounts"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

const (
	// DefaultTickInterval is the interval between toast expiry checks.
	DefaultTickInterval = 2 * time.Second

	// StatusRefreshInterval is how often the dashboard polls the remote API.
	StatusRefreshInterval = time.Minute

	DefaultNotificationDuration = 5 * time.Second
	LongNotificationDuration    = 10 * time.Second

	// logLimit is the number of audit entries shown in the Log tab.
	logLimit = 200
	// historyLimit is the number of reset records plotted per account.
	historyLimit = 60

	commandTimeout = 2 * time.Minute
)

// Backend is the part of services.Manager the TUI drives.
type Backend interface {
	GetStatus(ctx context.Context) (services.Status, error)
	GetLogs(ctx context.Context, limit int) ([]models.AuditEntry, error)
	GetHistory(ctx context.Context, accountID string, limit int) ([]models.ResetRecord, error)
	ManualReset(ctx context.Context) (scheduler.ManualResult, error)
	GetSchedule(ctx context.Context) (services.ScheduleView, error)
	SetScheduleEnabled(ctx context.Context, enabled bool) (services.ScheduleView, error)
	ListAccounts() []models.AccountView
	AddAccount(ctx context.Context, name, apiKey string) (models.AccountView, error)
	UpdateAccount(ctx context.Context, id string, u accounts.Update) (models.AccountView, error)
	DeleteAccount(ctx context.Context, id string) error
	Subscribe() (chan services.ServiceEvent, tea.Cmd)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadAllCmd reloads the status, the accounts and the audit log.
func loadAllCmd(b Backend) tea.Cmd {
	return tea.Batch(loadStatusCmd(b), loadAccountsCmd(b), loadLogsCmd(b))
}

func loadStatusCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		st, err := b.GetStatus(ctx)
		return StatusLoadedMsg{Status: st, Error: err}
	}
}

func loadLogsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		entries, err := b.GetLogs(context.Background(), logLimit)
		return LogsLoadedMsg{Entries: entries, Error: err}
	}
}

func loadHistoryCmd(b Backend, accountID string) tea.Cmd {
	return func() tea.Msg {
		records, err := b.GetHistory(context.Background(), accountID, historyLimit)
		return HistoryLoadedMsg{AccountID: accountID, Records: records, Error: err}
	}
}

func loadAccountsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		return AccountsLoadedMsg{Accounts: b.ListAccounts()}
	}
}

func addAccountCmd(b Backend, name, apiKey string) tea.Cmd {
	return func() tea.Msg {
		acc, err := b.AddAccount(context.Background(), name, apiKey)
		return AccountSavedMsg{Action: "added", Account: acc, Error: err}
	}
}

func setAccountEnabledCmd(b Backend, id string, enabled bool) tea.Cmd {
	return func() tea.Msg {
		acc, err := b.UpdateAccount(context.Background(), id, accounts.Update{Enabled: &enabled})
		action := "disabled"
		if enabled {
			action = "enabled"
		}
		return AccountSavedMsg{Action: action, Account: acc, Error: err}
	}
}

func deleteAccountCmd(b Backend, id, name string) tea.Cmd {
	return func() tea.Msg {
		err := b.DeleteAccount(context.Background(), id)
		return AccountSavedMsg{Action: "deleted", Account: models.AccountView{ID: id, Name: name}, Error: err}
	}
}

func manualResetCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		res, err := b.ManualReset(ctx)
		return ManualResetResultMsg{Result: res, Error: err}
	}
}

// toggleScheduleCmd flips the enabled flag of the stored schedule.
func toggleScheduleCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		view, err := b.GetSchedule(ctx)
		if err != nil {
			return ScheduleToggledMsg{Error: err}
		}
		view, err = b.SetScheduleEnabled(ctx, !view.Config.Enabled)
		return ScheduleToggledMsg{View: view, Error: err}
	}
}

func subscribeToServicesCmd(b Backend) tea.Cmd {
	ch, _ := b.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd blocks for the next event; a closed channel ends the loop.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, DefaultNotificationDuration)
}

// Commands exposes the backend commands to the tabs.
type Commands struct {
	backend Backend
}

// NewCommands creates a Commands helper.
func NewCommands(b Backend) *Commands {
	return &Commands{backend: b}
}

// LoadHistory returns a command that loads the reset history of an account.
func (c *Commands) LoadHistory(accountID string) tea.Cmd {
	if c.backend == nil || accountID == "" {
		return nil
	}
	return loadHistoryCmd(c.backend, accountID)
}

// LoadAccounts returns a command that reloads the account list.
func (c *Commands) LoadAccounts() tea.Cmd {
	if c.backend == nil {
		return nil
	}
	return loadAccountsCmd(c.backend)
}

// AddAccount returns a command that registers an account.
func (c *Commands) AddAccount(name, apiKey string) tea.Cmd {
	if c.backend == nil {
		return nil
	}
	return addAccountCmd(c.backend, name, apiKey)
}

// SetAccountEnabled returns a command that enables or disables an account.
func (c *Commands) SetAccountEnabled(id string, enabled bool) tea.Cmd {
	if c.backend == nil || id == "" {
		return nil
	}
	return setAccountEnabledCmd(c.backend, id, enabled)
}

// DeleteAccount returns a command that removes an account.
func (c *Commands) DeleteAccount(id, name string) tea.Cmd {
	if c.backend == nil || id == "" {
		return nil
	}
	return deleteAccountCmd(c.backend, id, name)
}

// Refresh returns a command that reloads the status, the accounts and the log.
func (c *Commands) Refresh() tea.Cmd {
	if c.backend == nil {
		return nil
	}
	return loadAllCmd(c.backend)
}
