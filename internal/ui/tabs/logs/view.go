package logs

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

// headerHeight is the number of lines above the viewport.
const headerHeight = 4

const (
	timeWidth    = 19
	levelWidth   = 6
	eventWidth   = 18
	accountWidth = 12
)

// View renders the log tab.
func (m *Model) View() string {
	m.refreshContent()

	entries := len(m.visibleEntries())
	title := styles.TitleStyle.Render("Audit Log")
	info := styles.HelpStyle.Render(fmt.Sprintf("%s entries, filter: %s", humanize.Comma(int64(entries)), m.filter))

	body := m.viewport.View()
	if entries == 0 {
		body = styles.HelpStyle.Render("No log entries")
	}

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title+"  "+info, renderHeader(), body))
}

func renderHeader() string {
	return styles.TableHeaderStyle.Render(fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
		timeWidth, "TIME", levelWidth, "LEVEL", eventWidth, "EVENT", accountWidth, "ACCOUNT", "MESSAGE"))
}

func (m *Model) refreshContent() {
	entries := m.visibleEntries()
	lines := make([]string, 0, len(entries))
	for i := range entries {
		lines = append(lines, renderEntry(&entries[i]))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func renderEntry(e *models.AuditEntry) string {
	level := styles.LevelStyle(e.Level).Width(levelWidth).Render(string(e.Level))
	return fmt.Sprintf("%-*s %s %-*s %-*s %s",
		timeWidth, e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		level,
		eventWidth, truncate(e.Event, eventWidth),
		accountWidth, truncate(e.AccountID, accountWidth),
		e.Message,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
