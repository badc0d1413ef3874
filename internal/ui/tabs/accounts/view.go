package accounts

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credit-reset-dashboard/internal/ui/components"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

// View renders the accounts tab.
func (m *Model) View() string {
	if _, loaded := m.state.AccountList(); !loaded {
		return components.RenderLoaderCentered(m.loader, m.width, m.height)
	}
	m.sync()

	sections := []string{m.renderTitle()}
	switch {
	case m.adding:
		sections = append(sections, m.renderAddForm())
	case m.confirmDelete:
		sections = append(sections, m.renderDeleteConfirm(), m.renderTable())
	default:
		sections = append(sections, m.renderTable())
	}
	sections = append(sections, m.renderFooter())

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderTitle() string {
	enabled := 0
	for _, acc := range m.accounts {
		if acc.Enabled {
			enabled++
		}
	}

	title := styles.TitleStyle.Render("Accounts")
	subtitle := styles.HelpStyle.Render(fmt.Sprintf("%d registered, %d enabled", len(m.accounts), enabled))
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderTable() string {
	cardWidth := max(m.width-6, 60)

	if len(m.accounts) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Center,
			"",
			styles.CardTitleStyle.Render("No accounts registered"),
			"",
			styles.InfoTextStyle.Render("Press n to add an API key"),
			"",
		)
		return styles.CardStyle.Width(cardWidth).Render(content)
	}

	return styles.CardStyle.Width(cardWidth).Render(m.table.View())
}

func (m *Model) renderAddForm() string {
	width := min(max(m.width-10, 50), 80)

	field := func(f formField, label, input string) []string {
		if m.focused == f {
			label = styles.FocusedStyle.Render("> " + label)
		} else {
			label = styles.HelpStyle.Render("  " + label)
		}
		return []string{label, "  " + input, ""}
	}

	rows := []string{styles.CardTitleStyle.Render("Add Account"), ""}
	rows = append(rows, field(fieldName, "Name (optional):", m.nameInput.View())...)
	rows = append(rows, field(fieldKey, "API key:", m.keyInput.View())...)
	if m.formErr != "" {
		rows = append(rows, styles.ErrorTextStyle.Render(m.formErr), "")
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Center,
		m.button(fieldSubmit, "Add"), "  ", m.button(fieldCancel, "Cancel")))

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) button(f formField, label string) string {
	if m.focused == f {
		return styles.FocusedStyle.Render("[ " + label + " ]")
	}
	return styles.HelpStyle.Render("[ " + label + " ]")
}

func (m *Model) renderDeleteConfirm() string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.WarningTextStyle.Bold(true).Render("Delete account?"),
		"",
		styles.ErrorTextStyle.Render(displayName(m.pending)+"  "+m.pending.MaskedKey),
		"",
		"Its reset history is removed too.",
		"",
		styles.FocusedStyle.Render("(y)es")+"  "+styles.HelpStyle.Render("(n)o"),
	)
	return styles.CardStyle.Width(50).Render(content)
}

func (m *Model) renderFooter() string {
	var parts []string
	switch {
	case m.adding:
		parts = []string{"tab next", "enter submit", "esc cancel"}
	case m.confirmDelete:
		parts = []string{"y confirm", "n cancel"}
	default:
		parts = []string{"j/k select", "n add", "space enable/disable", "d delete"}
	}
	return styles.HelpStyle.Render(strings.Join(parts, " • "))
}
