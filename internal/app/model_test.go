package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/components"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m := NewModel(nil)

	if m.GetState() == nil {
		t.Error("state should be initialized")
	}
	if m.GetCommands() == nil {
		t.Error("commands should be initialized")
	}
	if len(m.tabs) != 3 {
		t.Errorf("expected 3 tab slots, got %d", len(m.tabs))
	}
	if m.GetActiveTab() != TabDashboard {
		t.Errorf("active tab = %v, want Dashboard", m.GetActiveTab())
	}
}

func TestTabID_String(t *testing.T) {
	if TabDashboard.String() != "Dashboard" || TabLog.String() != "Log" ||
		TabAccounts.String() != "Accounts" || TabID(9).String() != "Unknown" {
		t.Error("unexpected tab names")
	}
}

func TestModel_Init(t *testing.T) {
	m := NewModel(nil)
	if m.Init() == nil {
		t.Error("Init should return a command")
	}

	notifs := m.GetState().GetNotifications()
	if len(notifs) != 1 || notifs[0].ID != LoadingNotificationID {
		t.Errorf("expected loading notification, got %+v", notifs)
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	if !m.ready || m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d ready=%v", m.width, m.height, m.ready)
	}
}

func TestModel_TabKeys(t *testing.T) {
	m := NewModel(nil)

	m.Update(runes("2"))
	if m.GetActiveTab() != TabLog {
		t.Errorf("after '2' active tab = %v", m.GetActiveTab())
	}

	m.Update(runes("3"))
	if m.GetActiveTab() != TabAccounts {
		t.Errorf("after '3' active tab = %v", m.GetActiveTab())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.GetActiveTab() != TabDashboard {
		t.Errorf("tab should wrap to Dashboard, got %v", m.GetActiveTab())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.GetActiveTab() != TabAccounts {
		t.Errorf("shift+tab should wrap to Accounts, got %v", m.GetActiveTab())
	}

	m.Update(runes("1"))
	if m.GetActiveTab() != TabDashboard {
		t.Errorf("after '1' active tab = %v", m.GetActiveTab())
	}
}

func TestModel_HelpBlocksTabSwitch(t *testing.T) {
	m := NewModel(nil)

	m.Update(runes("?"))
	if !m.showHelp {
		t.Fatal("help should be shown")
	}

	m.Update(runes("2"))
	if m.GetActiveTab() != TabDashboard {
		t.Error("tabs should not switch while help is open")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc should close help")
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(nil)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit should return tea.QuitMsg")
	}
}

func TestModel_StatusLoaded(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)

	_, cmd := m.Update(StatusLoadedMsg{Status: b.status})

	st := m.GetState()
	if st.IsInitialLoading() {
		t.Error("initial loading should be cleared")
	}
	if len(st.GetAccounts()) != 2 {
		t.Errorf("accounts = %d, want 2", len(st.GetAccounts()))
	}
	if len(st.GetNotifications()) != 0 {
		t.Error("loading toast should be cleared once nothing is loading")
	}

	msgs := collect(cmd)
	h, ok := findMsg[HistoryLoadedMsg](msgs)
	if !ok || h.AccountID != "a" {
		t.Errorf("expected history load for the selected account, got %+v", msgs)
	}
}

func TestModel_StatusLoadedError(t *testing.T) {
	m := NewModel(newFakeBackend())

	_, cmd := m.Update(StatusLoadedMsg{Error: apperr.New(apperr.CodeTimeout, "request timed out")})

	n, ok := findMsg[AddNotificationMsg](collect(cmd))
	if !ok || n.Type != NotificationError {
		t.Fatalf("expected error notification, got %+v", n)
	}
	if !strings.Contains(n.Message, "request timed out") {
		t.Errorf("message = %q", n.Message)
	}
	if m.GetState().GetStatus() != nil {
		t.Error("status should stay nil after a failed load")
	}
}

func TestModel_HistoryAndLogsLoaded(t *testing.T) {
	m := NewModel(nil)

	m.Update(HistoryLoadedMsg{AccountID: "a", Records: []models.ResetRecord{{ID: 3}}})
	m.Update(HistoryLoadedMsg{AccountID: "b", Error: errors.New("nope")})
	m.Update(LogsLoadedMsg{Entries: []models.AuditEntry{{ID: 1}}})

	st := m.GetState()
	if len(st.GetHistory("a")) != 1 {
		t.Error("history of a should be stored")
	}
	if st.GetHistory("b") != nil {
		t.Error("failed history load should not be stored")
	}
	if len(st.GetLogs()) != 1 {
		t.Error("logs should be stored")
	}
}

func TestModel_ManualReset(t *testing.T) {
	b := newFakeBackend()
	b.reset = scheduler.ManualResult{Success: true, Message: "2 resets done"}
	m := NewModel(b)

	_, cmd := m.Update(runes("m"))
	if !m.GetState().IsResetting() {
		t.Fatal("reset should be in progress")
	}

	// A second press while running only warns.
	_, again := m.Update(runes("m"))
	if n, ok := again().(AddNotificationMsg); !ok || n.Type != NotificationWarning {
		t.Errorf("second press = %#v, want warning", n)
	}

	result := cmd().(ManualResetResultMsg)
	if b.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", b.resetCalls)
	}

	_, cmd = m.Update(result)
	if m.GetState().IsResetting() {
		t.Error("reset flag should be cleared")
	}

	msgs := collect(cmd)
	n, ok := findMsg[AddNotificationMsg](msgs)
	if !ok || n.Type != NotificationSuccess || n.Message != "2 resets done" {
		t.Errorf("notification = %+v", n)
	}
	if _, ok := findMsg[StatusLoadedMsg](msgs); !ok {
		t.Error("a finished reset should refresh the status")
	}
}

func TestModel_ManualResetOutcomes(t *testing.T) {
	tests := []struct {
		name string
		msg  ManualResetResultMsg
		want NotificationType
	}{
		{"failed run", ManualResetResultMsg{Result: scheduler.ManualResult{Message: "no resets"}}, NotificationWarning},
		{"error", ManualResetResultMsg{Error: apperr.New(apperr.CodeNoAccounts, "no accounts")}, NotificationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(newFakeBackend())
			_, cmd := m.Update(tt.msg)
			n, ok := findMsg[AddNotificationMsg](collect(cmd))
			if !ok || n.Type != tt.want {
				t.Errorf("notification = %+v, want %s", n, tt.want)
			}
		})
	}
}

func TestModel_ToggleSchedule(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)

	_, cmd := m.Update(runes("s"))
	msg := cmd().(ScheduleToggledMsg)
	if msg.View.Config.Enabled {
		t.Fatal("schedule should be disabled")
	}

	_, cmd = m.Update(msg)
	msgs := collect(cmd)
	n, ok := findMsg[AddNotificationMsg](msgs)
	if !ok || n.Message != "Schedule disabled" {
		t.Errorf("notification = %+v", n)
	}
	if _, ok := findMsg[StatusLoadedMsg](msgs); !ok {
		t.Error("toggling should reload the status")
	}
}

func TestModel_RunFinishedEvent(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)

	summary := scheduler.RunSummary{
		Trigger:   scheduler.TriggerFirst,
		ResetType: models.ResetFirst,
		Succeeded: 1,
		Failed:    1,
	}
	_, cmd := m.Update(ServiceEventMsg{Event: services.RunFinishedEvent{Summary: summary}})
	msgs := collect(cmd)

	n, ok := findMsg[AddNotificationMsg](msgs)
	if !ok || n.Type != NotificationWarning {
		t.Errorf("notification = %+v, want warning", n)
	}
	if !strings.HasPrefix(n.Message, "FIRST reset:") {
		t.Errorf("message = %q", n.Message)
	}
	if _, ok := findMsg[RunFinishedMsg](msgs); !ok {
		t.Error("RunFinishedMsg should be forwarded")
	}
}

func TestModel_ManualRunFinishedEventIsQuiet(t *testing.T) {
	m := NewModel(nil)

	summary := scheduler.RunSummary{Trigger: scheduler.TriggerManual, ResetType: models.ResetManual}
	_, cmd := m.Update(ServiceEventMsg{Event: services.RunFinishedEvent{Summary: summary}})

	if _, ok := findMsg[AddNotificationMsg](collect(cmd)); ok {
		t.Error("manual runs are reported by the command result")
	}
}

func TestModel_ErrorEvent(t *testing.T) {
	m := NewModel(nil)

	_, cmd := m.Update(ServiceEventMsg{Event: services.ErrorEvent{Service: "scheduler", Error: errors.New("db closed")}})

	n, ok := findMsg[AddNotificationMsg](collect(cmd))
	if !ok || n.Message != "[scheduler] db closed" {
		t.Errorf("notification = %+v", n)
	}
}

func TestModel_Notifications(t *testing.T) {
	m := NewModel(nil)

	m.Update(AddNotificationMsg{Type: NotificationInfo, Message: "hello", Duration: 0})
	notifs := m.GetState().GetNotifications()

	var id string
	for _, n := range notifs {
		if n.Message == "hello" {
			id = n.ID
		}
	}
	if id == "" {
		t.Fatal("notification should be stored")
	}

	m.Update(RemoveNotificationMsg{ID: id})
	for _, n := range m.GetState().GetNotifications() {
		if n.ID == id {
			t.Error("notification should be removed")
		}
	}
}

func TestModel_TickRefreshesStaleStatus(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)
	m.GetState().SetLoading(ResourceInitial, false)
	m.GetState().SetStatus(b.status)
	m.GetState().LastUpdated = time.Now().Add(-2 * StatusRefreshInterval)

	m.handleTick()

	if !m.GetState().AnyLoading() {
		t.Error("stale status should trigger a reload")
	}
}

func TestModel_TickSkipsFreshStatus(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)
	m.GetState().SetLoading(ResourceInitial, false)
	m.GetState().SetStatus(b.status)

	m.handleTick()

	if m.GetState().AnyLoading() {
		t.Error("fresh status should not be reloaded")
	}
}

func TestModel_View(t *testing.T) {
	m := NewModel(nil)
	if !strings.Contains(m.View(), "Loading") {
		t.Error("view before sizing should show loading")
	}

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	st := testStatus("a")
	st.Schedule.Enabled = true
	m.Update(StatusLoadedMsg{Status: st})

	view := m.View()
	for _, want := range []string{"Dashboard", "Log", "Accounts", "schedule on"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	if !strings.Contains(m.renderHelp(), "Keyboard Shortcuts") {
		t.Error("help panel should render")
	}
}

// inputTab stands in for a tab with an open text form.
type inputTab struct {
	capturing bool
	keys      []string
}

func (t *inputTab) Init() tea.Cmd { return nil }

func (t *inputTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		t.keys = append(t.keys, k.String())
	}
	return t, nil
}

func (t *inputTab) View() string             { return "" }
func (t *inputTab) SetSize(int, int)         {}
func (t *inputTab) ShortHelp() []key.Binding { return nil }
func (t *inputTab) Capturing() bool          { return t.capturing }

func TestModel_CapturingTabGetsKeys(t *testing.T) {
	m := NewModel(nil)
	tab := &inputTab{capturing: true}
	m.SetTabs([]Tab{tab})

	for _, k := range []string{"q", "2", "m", "?"} {
		_, cmd := m.Update(runes(k))
		if cmd != nil {
			if _, quit := cmd().(tea.QuitMsg); quit {
				t.Fatalf("%q should not quit while typing", k)
			}
		}
	}
	if m.GetActiveTab() != TabDashboard || m.showHelp {
		t.Error("global keys should be ignored while typing")
	}
	if len(tab.keys) != 4 {
		t.Errorf("tab keys = %v, want 4", tab.keys)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should still quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should return tea.QuitMsg")
	}

	tab.capturing = false
	m.Update(runes("2"))
	if m.GetActiveTab() != TabLog {
		t.Error("global keys should work again once the form closes")
	}
}

func TestModel_AccountsLoaded(t *testing.T) {
	m := NewModel(nil)
	m.GetState().SetLoading(ResourceAccounts, true)

	m.Update(AccountsLoadedMsg{Accounts: []models.AccountView{{ID: "a", Name: "main"}}})

	list, loaded := m.GetState().AccountList()
	if !loaded || len(list) != 1 {
		t.Errorf("AccountList = %v, %v", list, loaded)
	}
	if m.GetState().Loading.Accounts {
		t.Error("accounts should no longer be loading")
	}
}

func TestModel_AccountsChangedEvent(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)

	_, cmd := m.Update(ServiceEventMsg{Event: services.AccountsChangedEvent{
		Accounts: []models.AccountView{{ID: "a"}, {ID: "b"}},
	}})

	if list, _ := m.GetState().AccountList(); len(list) != 2 {
		t.Errorf("accounts = %d, want 2", len(list))
	}
	if _, ok := findMsg[StatusLoadedMsg](collect(cmd)); !ok {
		t.Error("an accounts change should reload the status")
	}
}

func TestModel_AccountRequests(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)

	_, cmd := m.Update(AddAccountMsg{Name: "main", APIKey: "sk-12345678"})
	saved, ok := findMsg[AccountSavedMsg](collect(cmd))
	if !ok || saved.Error != nil {
		t.Fatalf("add = %+v, %v", saved, ok)
	}

	_, cmd = m.Update(saved)
	msgs := collect(cmd)
	n, ok := findMsg[AddNotificationMsg](msgs)
	if !ok || n.Type != NotificationSuccess || n.Message != "Account main added" {
		t.Errorf("notification = %+v", n)
	}
	if _, ok := findMsg[AccountsLoadedMsg](msgs); !ok {
		t.Error("a saved account should reload the list")
	}

	_, cmd = m.Update(SetAccountEnabledMsg{ID: saved.Account.ID, Enabled: false})
	if toggled, ok := findMsg[AccountSavedMsg](collect(cmd)); !ok || toggled.Account.Enabled {
		t.Errorf("toggle = %+v, %v", toggled, ok)
	}

	_, cmd = m.Update(DeleteAccountMsg{ID: saved.Account.ID, Name: "main"})
	if _, ok := findMsg[AccountSavedMsg](collect(cmd)); !ok || len(b.deleted) != 1 {
		t.Errorf("delete should reach the backend, deleted = %v", b.deleted)
	}
}

func TestModel_AccountSavedError(t *testing.T) {
	m := NewModel(newFakeBackend())

	_, cmd := m.Update(AccountSavedMsg{
		Action: "added",
		Error:  apperr.New(apperr.CodeDuplicateCredential, "API key already registered"),
	})

	n, ok := findMsg[AddNotificationMsg](collect(cmd))
	if !ok || n.Type != NotificationError {
		t.Fatalf("notification = %+v, %v", n, ok)
	}
	if n.Message != "Account not added: API key already registered" {
		t.Errorf("message = %q", n.Message)
	}
}

func TestModel_LoadingToastFollowsActivity(t *testing.T) {
	b := newFakeBackend()
	m := NewModel(b)
	m.GetState().SetLoading(ResourceInitial, false)

	m.Update(runes("r"))
	if got := loadingToast(m); got != components.ActivityStatus.Label() {
		t.Errorf("toast = %q, want status label", got)
	}

	// The status reply starts loading the selected account's history.
	m.Update(StatusLoadedMsg{Status: b.status})
	if got := loadingToast(m); got != components.ActivityAccounts.Label() {
		t.Errorf("toast = %q, want accounts label", got)
	}

	m.Update(AccountsLoadedMsg{})
	if got := loadingToast(m); got != components.ActivityHistory.Label() {
		t.Errorf("toast = %q, want history label", got)
	}

	m.Update(HistoryLoadedMsg{AccountID: "a"})
	if got := loadingToast(m); got != components.ActivityLogs.Label() {
		t.Errorf("toast = %q, want logs label", got)
	}

	m.Update(LogsLoadedMsg{})
	if got := loadingToast(m); got != "" {
		t.Errorf("toast should be gone, got %q", got)
	}
}

func loadingToast(m *Model) string {
	for _, n := range m.GetState().GetNotifications() {
		if n.ID == LoadingNotificationID {
			return n.Message
		}
	}
	return ""
}
