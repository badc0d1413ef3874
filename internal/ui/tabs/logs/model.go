// Package logs provides the audit log tab.
package logs

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credit-reset-dashboard/internal/app"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// levelFilter selects the minimum level shown.
type levelFilter int

const (
	filterAll levelFilter = iota
	filterWarn
	filterError
)

func (f levelFilter) String() string {
	switch f {
	case filterWarn:
		return "warnings and errors"
	case filterError:
		return "errors only"
	default:
		return "all"
	}
}

func (f levelFilter) next() levelFilter {
	return (f + 1) % 3
}

func (f levelFilter) allows(level models.AuditLevel) bool {
	switch f {
	case filterWarn:
		return level == models.AuditWarning || level == models.AuditError
	case filterError:
		return level == models.AuditError
	default:
		return true
	}
}

type keyMap struct {
	Filter key.Binding
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "cycle level filter"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "newest"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "oldest"),
		),
	}
}

// Model represents the log tab state.
type Model struct {
	state    *app.State
	keys     keyMap
	viewport viewport.Model
	filter   levelFilter
	width    int
	height   int
}

// New creates a new log model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.LogsLoadedMsg:
		m.refreshContent()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Filter):
			m.filter = m.filter.next()
			m.refreshContent()
			m.viewport.GotoTop()
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
		default:
			// The viewport's own key map scrolls on up/down and k/j.
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// SetSize sets the available size for the log.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-4, 0)
	m.viewport.Height = max(height-headerHeight, 0)
	m.refreshContent()
}

// visibleEntries returns the entries that pass the level filter.
func (m *Model) visibleEntries() []models.AuditEntry {
	all := m.state.GetLogs()
	out := all[:0]
	for _, e := range all {
		if m.filter.allows(e.Level) {
			out = append(out, e)
		}
	}
	return out
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Filter,
		m.keys.Up,
		m.keys.Down,
		m.keys.Top,
		m.keys.Bottom,
	}
}
