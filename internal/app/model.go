package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	TabDashboard TabID = iota
	TabLog
	TabAccounts
)

func (t TabID) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabLog:
		return "Log"
	case TabAccounts:
		return "Accounts"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Tab, tea.Cmd)
	View() string
	SetSize(width, height int)
	ShortHelp() []key.Binding
}

// InputTab is a tab that takes free text. While Capturing reports true,
// keys go to the tab and only ctrl+c is handled globally.
type InputTab interface {
	Capturing() bool
}

// KeyMap defines the global keybindings.
type KeyMap struct {
	Tab1           key.Binding
	Tab2           key.Binding
	Tab3           key.Binding
	NextTab        key.Binding
	PrevTab        key.Binding
	Refresh        key.Binding
	ManualReset    key.Binding
	ToggleSchedule key.Binding
	Help           key.Binding
	Quit           key.Binding
	Escape         key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:           key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		Tab2:           key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "log")),
		Tab3:           key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "accounts")),
		NextTab:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab:        key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		Refresh:        key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		ManualReset:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual reset")),
		ToggleSchedule: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle schedule")),
		Help:           key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Escape:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// Styles defines the application chrome styles.
type Styles struct {
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style

	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	Content lipgloss.Style
	Toast   lipgloss.Style

	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}
	info := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}

	return Styles{
		TabBar: lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).BorderForeground(subtle),
		ActiveTab:   lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2),
		InactiveTab: lipgloss.NewStyle().Foreground(subtle).Padding(0, 2),

		NotificationSuccess: lipgloss.NewStyle().Foreground(success).Padding(0, 1),
		NotificationError:   lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1),
		NotificationWarning: lipgloss.NewStyle().Foreground(warning).Padding(0, 1),
		NotificationInfo:    lipgloss.NewStyle().Foreground(info).Padding(0, 1),

		Content: lipgloss.NewStyle().Padding(1, 2),
		Toast:   styles.ToastStyle,

		Title:     lipgloss.NewStyle().Bold(true).Foreground(highlight),
		Subtle:    lipgloss.NewStyle().Foreground(subtle),
		Highlight: lipgloss.NewStyle().Foreground(highlight),
	}
}

// Model is the root application model.
type Model struct {
	backend  Backend
	state    *State
	commands *Commands
	styles   Styles
	keymap   KeyMap

	tabs     []Tab
	tabNames []string

	spinner      spinner.Model
	eventChannel chan services.ServiceEvent

	activeTab TabID
	width     int
	height    int
	showHelp  bool
	ready     bool
}

// NewModel creates the root model. Tabs are attached with SetTabs.
func NewModel(b Backend) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		backend:   b,
		activeTab: TabDashboard,
		tabNames:  []string{TabDashboard.String(), TabLog.String(), TabAccounts.String()},
		tabs:      make([]Tab, 3),
		state:     NewState(),
		commands:  NewCommands(b),
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

func (m *Model) GetState() *State {
	return m.state
}

func (m *Model) GetCommands() *Commands {
	return m.commands
}

func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// Init starts the tick loop, the event subscription and the first load.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification(m.state.Activity().Label())

	cmds := []tea.Cmd{m.spinner.Tick, defaultTickCmd()}

	if m.backend != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.backend), loadAllCmd(m.backend))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.updateTabSizes()
	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		if handled {
			return m, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		cmds = append(cmds, m.handleTick())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event)...)
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case StatusLoadedMsg:
		cmds = append(cmds, m.handleStatusLoaded(msg)...)
	case LogsLoadedMsg:
		m.state.SetLoading(ResourceLogs, false)
		if msg.Error != nil {
			cmds = append(cmds, notifyErrorCmd("Failed to load log: "+apperr.MessageOf(msg.Error)))
		} else {
			m.state.SetLogs(msg.Entries)
		}
	case HistoryLoadedMsg:
		m.state.SetLoading(ResourceHistory, false)
		if msg.Error == nil {
			m.state.SetHistory(msg.AccountID, msg.Records)
		}
	case AccountSelectedMsg:
		cmds = append(cmds, m.loadHistory(msg.AccountID))
	case AccountsLoadedMsg:
		m.state.SetLoading(ResourceAccounts, false)
		m.state.SetAccountList(msg.Accounts)
	case AddAccountMsg:
		cmds = append(cmds, m.commands.AddAccount(msg.Name, msg.APIKey))
	case SetAccountEnabledMsg:
		cmds = append(cmds, m.commands.SetAccountEnabled(msg.ID, msg.Enabled))
	case DeleteAccountMsg:
		cmds = append(cmds, m.commands.DeleteAccount(msg.ID, msg.Name))
	case AccountSavedMsg:
		cmds = append(cmds, m.handleAccountSaved(msg)...)
	case ManualResetResultMsg:
		cmds = append(cmds, m.handleManualResetResult(msg)...)
	case ScheduleToggledMsg:
		cmds = append(cmds, m.handleScheduleToggled(msg)...)
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case RefreshMsg:
		cmds = append(cmds, m.refresh())
	case TabSwitchMsg:
		m.activeTab = msg.Tab
		m.updateTabSizes()
	}
	m.clearLoadingToast()
	return cmds
}

func (m *Model) handleTick() tea.Cmd {
	m.state.ClearExpiredNotifications()

	cmds := []tea.Cmd{defaultTickCmd()}
	if m.backend != nil && !m.state.AnyLoading() && m.state.TimeSinceUpdate() > StatusRefreshInterval {
		m.state.SetLoading(ResourceStatus, true)
		cmds = append(cmds, loadStatusCmd(m.backend))
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleStatusLoaded(msg StatusLoadedMsg) []tea.Cmd {
	m.state.SetLoading(ResourceInitial, false)
	m.state.SetLoading(ResourceStatus, false)

	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd("Failed to load status: " + apperr.MessageOf(msg.Error))}
	}

	m.state.SetStatus(msg.Status)
	if acc, ok := m.state.SelectedAccount(); ok {
		return []tea.Cmd{m.loadHistory(acc.Account.ID)}
	}
	return nil
}

func (m *Model) loadHistory(accountID string) tea.Cmd {
	cmd := m.commands.LoadHistory(accountID)
	if cmd != nil {
		m.state.SetLoading(ResourceHistory, true)
	}
	return cmd
}

func (m *Model) handleAccountSaved(msg AccountSavedMsg) []tea.Cmd {
	name := msg.Account.Name
	if name == "" {
		name = msg.Account.MaskedKey
	}
	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Account not %s: %s", msg.Action, apperr.MessageOf(msg.Error)))}
	}

	cmds := []tea.Cmd{notifySuccessCmd(fmt.Sprintf("Account %s %s", name, msg.Action))}
	if m.backend != nil {
		cmds = append(cmds, loadAccountsCmd(m.backend), loadStatusCmd(m.backend))
	}
	return cmds
}

func (m *Model) handleManualResetResult(msg ManualResetResultMsg) []tea.Cmd {
	m.state.SetLoading(ResourceReset, false)

	var cmds []tea.Cmd
	switch {
	case msg.Error != nil:
		cmds = append(cmds, notifyErrorCmd(apperr.MessageOf(msg.Error)))
	case msg.Result.Success:
		cmds = append(cmds, notifySuccessCmd(msg.Result.Message))
	default:
		cmds = append(cmds, notifyWarningCmd(msg.Result.Message))
	}
	if cmd := m.refresh(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (m *Model) handleScheduleToggled(msg ScheduleToggledMsg) []tea.Cmd {
	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd("Failed to update schedule: " + apperr.MessageOf(msg.Error))}
	}

	state := "disabled"
	if msg.View.Config.Enabled {
		state = "enabled"
	}
	cmds := []tea.Cmd{notifyInfoCmd("Schedule " + state)}
	if m.backend != nil {
		cmds = append(cmds, loadStatusCmd(m.backend))
	}
	return cmds
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) []tea.Cmd {
	var cmds []tea.Cmd

	switch e := event.(type) {
	case services.AccountsChangedEvent:
		m.state.SetAccountList(e.Accounts)
		if m.backend != nil {
			cmds = append(cmds, loadStatusCmd(m.backend))
		}

	case services.RunFinishedEvent:
		if e.Summary.Trigger != scheduler.TriggerManual {
			cmds = append(cmds, notifyCmd(levelNotification(e.Summary),
				fmt.Sprintf("%s reset: %s", e.Summary.ResetType, e.Summary.Message()), LongNotificationDuration))
		}
		if m.backend != nil {
			cmds = append(cmds, loadAllCmd(m.backend))
		}
		cmds = append(cmds, func() tea.Msg { return RunFinishedMsg{Summary: e.Summary} })

	case services.ErrorEvent:
		cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error)))
	}

	return cmds
}

func levelNotification(s scheduler.RunSummary) NotificationType {
	switch s.Level() {
	case models.AuditError:
		return NotificationError
	case models.AuditWarning:
		return NotificationWarning
	default:
		return NotificationSuccess
	}
}

func (m *Model) refresh() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	m.state.SetLoading(ResourceStatus, true)
	m.state.SetLoading(ResourceAccounts, true)
	m.state.SetLoading(ResourceLogs, true)
	m.state.SetLoadingNotification(m.state.Activity().Label())
	return loadAllCmd(m.backend)
}

// clearLoadingToast follows the loading toast to the next resource in
// flight, or drops it once nothing is left.
func (m *Model) clearLoadingToast() {
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
		return
	}
	if m.hasLoadingToast() {
		m.state.SetLoadingNotification(m.state.Activity().Label())
	}
}

func (m *Model) hasLoadingToast() bool {
	for _, n := range m.state.GetNotifications() {
		if n.ID == LoadingNotificationID {
			return true
		}
	}
	return false
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := max(m.height-5, 0)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

// handleKeyMsg processes global keys. Unhandled keys go to the active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.capturing() {
		if msg.Type == tea.KeyCtrlC {
			return tea.Quit, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil, true

	case key.Matches(msg, m.keymap.Escape) && m.showHelp:
		m.showHelp = false
		return nil, true

	case key.Matches(msg, m.keymap.Tab1):
		m.switchTab(TabDashboard)
		return nil, true

	case key.Matches(msg, m.keymap.Tab2):
		m.switchTab(TabLog)
		return nil, true

	case key.Matches(msg, m.keymap.Tab3):
		m.switchTab(TabAccounts)
		return nil, true

	case key.Matches(msg, m.keymap.NextTab):
		m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabNames)))
		return nil, true

	case key.Matches(msg, m.keymap.PrevTab):
		m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabNames)) % len(m.tabNames)))
		return nil, true

	case key.Matches(msg, m.keymap.Refresh):
		return m.refresh(), true

	case key.Matches(msg, m.keymap.ManualReset):
		return m.startManualReset(), true

	case key.Matches(msg, m.keymap.ToggleSchedule):
		if m.backend == nil {
			return nil, true
		}
		return toggleScheduleCmd(m.backend), true
	}

	return nil, false
}

func (m *Model) capturing() bool {
	if int(m.activeTab) >= len(m.tabs) {
		return false
	}
	t, ok := m.tabs[m.activeTab].(InputTab)
	return ok && t.Capturing()
}

func (m *Model) switchTab(id TabID) {
	if m.showHelp {
		return
	}
	m.activeTab = id
	m.updateTabSizes()
}

func (m *Model) startManualReset() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	if m.state.IsResetting() {
		return notifyWarningCmd("A reset is already running")
	}
	m.state.SetLoading(ResourceReset, true)
	m.state.SetLoadingNotification(m.state.Activity().Label())
	return manualResetCmd(m.backend)
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	}

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		return m.overlayToasts(mainView, toasts)
	}

	return mainView
}

func (m *Model) overlayCentered(mainView, overlay string) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	y := max((m.height-len(overlayLines))/2, 0)
	x := max((m.width-lipgloss.Width(overlay))/2, 0)
	overlayWidth := lipgloss.Width(overlay)

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]
		left := ansi.Truncate(mainLine, x, "")
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, len(m.tabNames))

	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	if st := m.state.GetStatus(); st != nil {
		sched := m.styles.Subtle.Render("schedule off")
		if st.Schedule.Enabled {
			sched = m.styles.Highlight.Render("schedule on")
		}
		tabs = append(tabs, m.styles.InactiveTab.Render(sched))
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = m.styles.NotificationSuccess, "[OK]"
		case NotificationError:
			style, prefix = m.styles.NotificationError, "[ERR]"
		case NotificationWarning:
			style, prefix = m.styles.NotificationWarning, "[WARN]"
		case NotificationInfo:
			style, prefix = m.styles.NotificationInfo, "[INFO]"
		case NotificationLoading:
			style, prefix = m.styles.NotificationInfo, m.spinner.View()
		}

		content := style.Render(fmt.Sprintf("%s %s", prefix, n.Message))
		toasts = append(toasts, m.styles.Toast.Render(content))
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	startX := max(m.width-lipgloss.Width(toastStack)-2, 0)
	startY := 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		if w := lipgloss.Width(mainLine); w < startX {
			mainLines[lineIdx] = mainLine + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[lineIdx] = ansi.Truncate(mainLine, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	lines := []string{
		m.styles.Title.Render("Keyboard Shortcuts"),
		"",
		m.styles.Highlight.Render("Navigation"),
		"  1/2/3      Switch tabs",
		"  Tab        Next tab",
		"  Shift+Tab  Previous tab",
		"",
		m.styles.Highlight.Render("Actions"),
		"  r          Refresh status, accounts and log",
		"  m          Reset credits now",
		"  s          Enable/disable the schedule",
		"  ?          Toggle help",
		"  q/Ctrl+C   Quit",
		"",
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
			lines = append(lines, m.styles.Highlight.Render(m.tabNames[m.activeTab]+" Tab"))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}
