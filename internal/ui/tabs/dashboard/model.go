// Package dashboard provides the main tab: schedule, last run and per-account credits.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credit-reset-dashboard/internal/app"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/components"
)

const animationDuration = 1500 * time.Millisecond

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

type keyMap struct {
	NextAccount  key.Binding
	PrevAccount  key.Binding
	FirstAccount key.Binding
	LastAccount  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextAccount: key.NewBinding(
			key.WithKeys("n", "j", "down"),
			key.WithHelp("j/n", "next account"),
		),
		PrevAccount: key.NewBinding(
			key.WithKeys("p", "k", "up"),
			key.WithHelp("k/p", "prev account"),
		),
		FirstAccount: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first account"),
		),
		LastAccount: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last account"),
		),
	}
}

// AnimationState eases a credits bar toward its latest value.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state      *app.State
	animations map[string]*AnimationState
	loader     components.Loader
	keys       keyMap
	viewport   viewport.Model
	width      int
	height     int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		loader:     components.NewLoader(components.ActivityStatus),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init starts the loader.
func (m *Model) Init() tea.Cmd {
	return m.loader.Init()
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(time.Time(msg)))

	case app.StatusLoadedMsg, app.RunFinishedMsg:
		if m.syncAnimationTargets(time.Now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(now time.Time) tea.Cmd {
	m.stepAnimations(now)
	if m.animating() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	count := len(m.state.GetAccounts())
	if count == 0 {
		return nil
	}
	idx := m.state.GetSelectedAccountIndex()

	switch {
	case key.Matches(msg, m.keys.NextAccount):
		idx = (idx + 1) % count
	case key.Matches(msg, m.keys.PrevAccount):
		idx = (idx - 1 + count) % count
	case key.Matches(msg, m.keys.FirstAccount):
		idx = 0
	case key.Matches(msg, m.keys.LastAccount):
		idx = count - 1
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	return m.selectAccount(idx)
}

func (m *Model) selectAccount(idx int) tea.Cmd {
	m.state.SetSelectedAccountIndex(idx)
	acc, ok := m.state.SelectedAccount()
	if !ok {
		return nil
	}
	id := acc.Account.ID
	return func() tea.Msg {
		return app.AccountSelectedMsg{AccountID: id}
	}
}

// activity is what the dashboard is waiting on, if anything.
func (m *Model) activity() components.Activity {
	switch {
	case m.state.IsResetting():
		return components.ActivityReset
	case m.state.IsInitialLoading():
		return components.ActivityStatus
	default:
		return components.ActivityIdle
	}
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points every bar at its account's current credit
// percentage and reports whether any bar has to move.
func (m *Model) syncAnimationTargets(now time.Time) bool {
	moving := false
	for _, acc := range m.state.GetAccounts() {
		target, ok := creditPercent(acc)
		if !ok {
			continue
		}
		if m.updateAnimationState(acc.Account.ID, target, now) {
			moving = true
		}
	}
	return moving
}

func creditPercent(acc services.AccountStatus) (float64, bool) {
	if acc.Primary == nil || acc.Primary.Plan.CreditLimit <= 0 {
		return 0, false
	}
	return min(max(acc.Primary.CreditPercent(), 0), 100), true
}

func (m *Model) updateAnimationState(id string, target float64, now time.Time) bool {
	state, exists := m.animations[id]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[id] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime)
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := elapsed.Seconds() / animationDuration.Seconds()
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
	}
}

func (m *Model) animating() bool {
	for _, state := range m.animations {
		if state.CurrentPercent != state.TargetPercent {
			return true
		}
	}
	return false
}

// displayPercent returns the animated percentage, falling back to the real one.
func (m *Model) displayPercent(acc services.AccountStatus) float64 {
	if anim, ok := m.animations[acc.Account.ID]; ok {
		return anim.CurrentPercent
	}
	p, _ := creditPercent(acc)
	return p
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.NextAccount,
		m.keys.PrevAccount,
		m.keys.FirstAccount,
		m.keys.LastAccount,
	}
}
