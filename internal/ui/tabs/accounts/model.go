// Package accounts provides the tab that lists, adds, toggles and removes
// the API keys the engine resets.
package accounts

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/credit-reset-dashboard/internal/app"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/components"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

type formField int

const (
	fieldName formField = iota
	fieldKey
	fieldSubmit
	fieldCancel
	fieldCount
)

type keyMap struct {
	Add    key.Binding
	Toggle key.Binding
	Delete key.Binding
	Up     key.Binding
	Down   key.Binding
	Escape key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Add: key.NewBinding(
			key.WithKeys("n", "a"),
			key.WithHelp("n", "add account"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "e"),
			key.WithHelp("space", "enable/disable"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Model represents the accounts tab state.
type Model struct {
	state    *app.State
	table    table.Model
	accounts []models.AccountView
	loader   components.Loader
	keys     keyMap
	width    int
	height   int

	adding    bool
	focused   formField
	nameInput textinput.Model
	keyInput  textinput.Model
	formErr   string

	confirmDelete bool
	pending       models.AccountView
}

// New creates the accounts tab.
func New(state *app.State) *Model {
	nameInput := textinput.New()
	nameInput.Placeholder = "work, personal..."
	nameInput.CharLimit = 64
	nameInput.Width = 40

	keyInput := textinput.New()
	keyInput.Placeholder = "Paste API key..."
	keyInput.CharLimit = 256
	keyInput.Width = 40
	keyInput.EchoMode = textinput.EchoPassword

	t := table.New(
		table.WithColumns(columns(60)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle
	s.Selected = lipgloss.NewStyle().Foreground(styles.TextPrimary).Background(styles.Panel).Bold(true)
	t.SetStyles(s)

	return &Model{
		state:     state,
		table:     t,
		loader:    components.NewLoader(components.ActivityAccounts),
		keys:      defaultKeyMap(),
		nameInput: nameInput,
		keyInput:  keyInput,
	}
}

func columns(width int) []table.Column {
	nameWidth := min(max(width-56, 16), 40)
	return []table.Column{
		{Title: "Name", Width: nameWidth},
		{Title: "Key", Width: 14},
		{Title: "Status", Width: 10},
		{Title: "Added", Width: 16},
		{Title: "ID", Width: 10},
	}
}

// Init starts the loader.
func (m *Model) Init() tea.Cmd {
	return m.loader.Init()
}

// Capturing reports whether a form or confirmation owns the keyboard.
func (m *Model) Capturing() bool {
	return m.adding || m.confirmDelete
}

// Update handles messages for the accounts tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(tick)
		return m, cmd
	}

	if m.adding {
		return m, m.updateAddForm(msg)
	}
	if m.confirmDelete {
		return m, m.updateDeleteConfirm(msg)
	}

	m.sync()

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Add):
		m.openForm()
		return m, textinput.Blink

	case key.Matches(keyMsg, m.keys.Toggle):
		if acc, ok := m.selected(); ok {
			return m, func() tea.Msg {
				return app.SetAccountEnabledMsg{ID: acc.ID, Enabled: !acc.Enabled}
			}
		}

	case key.Matches(keyMsg, m.keys.Delete):
		if acc, ok := m.selected(); ok {
			m.confirmDelete = true
			m.pending = acc
		}

	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(keyMsg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) openForm() {
	m.adding = true
	m.focused = fieldName
	m.formErr = ""
	m.nameInput.SetValue("")
	m.keyInput.SetValue("")
	m.updateFormFocus()
}

func (m *Model) closeForm() {
	m.adding = false
	m.formErr = ""
	m.nameInput.Blur()
	m.keyInput.Blur()
}

func (m *Model) updateAddForm(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.closeForm()
			return nil

		case "tab", "down":
			m.focused = (m.focused + 1) % fieldCount
			m.updateFormFocus()
			return textinput.Blink

		case "shift+tab", "up":
			m.focused = (m.focused - 1 + fieldCount) % fieldCount
			m.updateFormFocus()
			return textinput.Blink

		case "enter":
			switch m.focused {
			case fieldSubmit:
				return m.submit()
			case fieldCancel:
				m.closeForm()
				return nil
			default:
				m.focused++
				m.updateFormFocus()
				return textinput.Blink
			}
		}
	}

	var cmd tea.Cmd
	switch m.focused {
	case fieldName:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case fieldKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
	}
	return cmd
}

// submit hands the form to the root model; an empty key keeps the form open.
func (m *Model) submit() tea.Cmd {
	name := strings.TrimSpace(m.nameInput.Value())
	apiKey := strings.TrimSpace(m.keyInput.Value())
	if apiKey == "" {
		m.formErr = "API key is required"
		m.focused = fieldKey
		m.updateFormFocus()
		return textinput.Blink
	}

	m.closeForm()
	return func() tea.Msg {
		return app.AddAccountMsg{Name: name, APIKey: apiKey}
	}
}

func (m *Model) updateFormFocus() {
	m.nameInput.Blur()
	m.keyInput.Blur()

	switch m.focused {
	case fieldName:
		m.nameInput.Focus()
	case fieldKey:
		m.keyInput.Focus()
	}
}

func (m *Model) updateDeleteConfirm(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		acc := m.pending
		m.confirmDelete = false
		m.pending = models.AccountView{}
		return func() tea.Msg {
			return app.DeleteAccountMsg{ID: acc.ID, Name: displayName(acc)}
		}
	case "n", "N", "esc":
		m.confirmDelete = false
		m.pending = models.AccountView{}
	}
	return nil
}

// sync copies the account list from the shared state into the table.
func (m *Model) sync() {
	list, _ := m.state.AccountList()
	m.accounts = list

	rows := make([]table.Row, 0, len(list))
	for _, acc := range list {
		status := "enabled"
		if !acc.Enabled {
			status = "disabled"
		}
		added := "-"
		if !acc.CreatedAt.IsZero() {
			added = humanize.Time(acc.CreatedAt)
		}
		rows = append(rows, table.Row{displayName(acc), acc.MaskedKey, status, added, shortID(acc.ID)})
	}
	m.table.SetRows(rows)

	if n := len(rows); m.table.Cursor() >= n {
		m.table.SetCursor(max(n-1, 0))
	}
}

func (m *Model) selected() (models.AccountView, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.accounts) {
		return models.AccountView{}, false
	}
	return m.accounts[idx], true
}

func displayName(acc models.AccountView) string {
	if acc.Name != "" {
		return acc.Name
	}
	return acc.MaskedKey
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SetSize sets the available size for the accounts tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetHeight(max(height-10, 3))
	m.table.SetColumns(columns(width))
}

// ShortHelp returns the key bindings for the help panel.
func (m *Model) ShortHelp() []key.Binding {
	if m.adding {
		return []key.Binding{
			key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
			m.keys.Escape,
		}
	}
	return []key.Binding{m.keys.Down, m.keys.Up, m.keys.Add, m.keys.Toggle, m.keys.Delete}
}
