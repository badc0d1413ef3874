package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/components"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

const (
	timeLayout     = "Jan 02 15:04"
	chartHeight    = 8
	sparklineWidth = 30
)

// View renders the dashboard component.
func (m *Model) View() string {
	m.loader.Set(m.activity())
	if m.state.IsInitialLoading() {
		return components.RenderLoaderCentered(m.loader, m.width, m.height)
	}

	st := m.state.GetStatus()
	if st == nil {
		return styles.DocStyle.Render(styles.HelpStyle.Render("Status unavailable. Press r to retry."))
	}

	cardWidth := max(m.width-6, 40)

	sections := []string{
		m.renderTitle(st),
		m.renderSchedule(st, cardWidth),
		m.renderLastRun(st.LastRun, cardWidth),
		m.renderAccounts(st, cardWidth),
	}
	if acc, ok := m.state.SelectedAccount(); ok {
		sections = append(sections, m.renderHistory(acc, cardWidth))
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle(st *services.Status) string {
	title := styles.TitleStyle.Render("Credit Reset Dashboard")

	conn := styles.ErrorTextStyle.Render("● disconnected")
	if st.Connected {
		conn = styles.SuccessTextStyle.Render("● connected")
	}
	line := conn + "  " + styles.HelpStyle.Render("checked "+humanize.Time(st.CheckedAt))
	if m.loader.Activity() == components.ActivityReset {
		line += "  " + m.loader.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, line, "")
}

func row(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func cardTitle(icon, title string) string {
	return fmt.Sprintf("%s %s", lipgloss.NewStyle().Foreground(styles.Primary).Render(icon), styles.CardTitleStyle.Render(title))
}

func formatAt(t *time.Time) string {
	if t == nil {
		return "---"
	}
	return fmt.Sprintf("%s (%s)", t.Format(timeLayout), humanize.Time(*t))
}

func (m *Model) renderSchedule(st *services.Status, width int) string {
	enabled := styles.WarningTextStyle.Render("disabled")
	if st.Schedule.Enabled {
		enabled = styles.SuccessTextStyle.Render("enabled")
	}

	rows := []string{
		cardTitle("◷", "Schedule"),
		"",
		styles.LabelStyle.Render("Status") + enabled,
		row("Timezone", st.Schedule.Timezone),
		row("First reset", st.Schedule.FirstReset.String()+"  next "+formatAt(st.Next.First)),
		row("Second reset", st.Schedule.SecondReset.String()+"  next "+formatAt(st.Next.Second)),
	}
	if st.NextReset != nil {
		rows = append(rows, row("Next reset", fmt.Sprintf("%s %s", st.NextResetType, formatAt(st.NextReset))))
	}
	rows = append(rows, row("API tokens", fmt.Sprintf("%d available", st.RateTokens)))

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderLastRun(run *scheduler.RunSummary, width int) string {
	rows := []string{cardTitle("↻", "Last Run"), ""}

	if run == nil {
		rows = append(rows, styles.HelpStyle.Render("  No runs since start"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	level := styles.LevelStyle(run.Level())
	rows = append(rows,
		row("Trigger", fmt.Sprintf("%s (%s)", run.Trigger, run.ResetType)),
		row("Finished", formatAt(&run.FinishedAt)),
		row("Resets", humanize.Comma(int64(run.Resets))),
		styles.LabelStyle.Render("Result")+level.Render(run.Message()),
	)

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAccounts(st *services.Status, width int) string {
	rows := []string{cardTitle("◈", "Accounts")}

	if len(st.Accounts) == 0 {
		rows = append(rows,
			"",
			fmt.Sprintf("  %s %s", lipgloss.NewStyle().Foreground(styles.Subtle).Render("○"),
				styles.HelpStyle.Render("No enabled accounts")),
			"",
			styles.InfoTextStyle.Render("  ╰─▶ Add accounts through the HTTP API or the accounts file"),
		)
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	divider := lipgloss.NewStyle().Foreground(styles.Subtle).Render(
		"  ├" + strings.Repeat("─", max(width-8, 20)) + "┤",
	)

	selected := m.state.GetSelectedAccountIndex()
	rows = append(rows, "")
	for i, acc := range st.Accounts {
		rows = append(rows, m.renderAccountRow(acc, i == selected, width-4))
		if i < len(st.Accounts)-1 {
			rows = append(rows, "", divider, "")
		}
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAccountRow(acc services.AccountStatus, selected bool, width int) string {
	lines := []string{renderAccountHeader(acc, selected)}

	if acc.Error != "" {
		lines = append(lines, "    "+styles.ErrorTextStyle.Render(fmt.Sprintf("%s: %s", acc.ErrorCode, acc.Error)))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	if acc.Primary == nil {
		lines = append(lines, "    "+styles.HelpStyle.Render("No resettable subscription"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	p := acc.Primary
	barWidth := max(width-30, 10)
	lines = append(lines,
		"    "+components.RenderCreditsBar(m.displayPercent(acc), 100, barWidth),
		"    "+row("Credits", fmt.Sprintf("%s / %s", humanize.Commaf(p.CurrentCredits), humanize.Commaf(p.Plan.CreditLimit))),
		"    "+row("Resets left", fmt.Sprintf("%d/%d", acc.RemainingResets, models.MaxDailyResets)),
	)

	if acc.CooldownActive {
		lines = append(lines, "    "+styles.LabelStyle.Render("Cooldown")+
			styles.WarningTextStyle.Render(fmt.Sprintf("%s left, eligible %s",
				acc.CooldownRemaining.Truncate(time.Minute), formatAt(acc.NextEligible))))
	}
	if acc.NextReset != nil {
		lines = append(lines, "    "+row("Next reset", fmt.Sprintf("%s %s", acc.NextResetType, formatAt(acc.NextReset))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccountHeader(acc services.AccountStatus, selected bool) string {
	indicator := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○ ")
	if acc.Connected {
		indicator = styles.SuccessTextStyle.Render("● ")
	}

	prefix := "  "
	if selected {
		prefix = styles.FocusedStyle.Render("▸ ")
	}

	name := acc.Account.Name
	if name == "" {
		name = acc.Account.MaskedKey
	}
	if len(name) > 35 {
		name = name[:32] + "..."
	}

	plan := styles.HelpStyle.Render(acc.Account.MaskedKey)
	if acc.Primary != nil {
		plan = styles.InfoTextStyle.Render("◆ "+acc.Primary.Name()) + " " + plan
	}

	return fmt.Sprintf("%s%s%s %s", prefix, indicator, lipgloss.NewStyle().Bold(true).Render(name), plan)
}

func (m *Model) renderHistory(acc services.AccountStatus, width int) string {
	records := m.state.GetHistory(acc.Account.ID)
	name := acc.Account.Name
	if name == "" {
		name = acc.Account.MaskedKey
	}

	ordered := chronological(records)
	rows := []string{
		cardTitle("▤", "Reset History: "+name),
		"",
		components.RenderCreditsChart(ordered, max(width-16, 20), chartHeight),
	}
	if spark := components.RenderSparkline(resetsPerRecord(ordered), sparklineWidth); spark != "" {
		rows = append(rows, "", row("Resets", spark))
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// chronological returns records oldest first; the store returns them newest first.
func chronological(records []models.ResetRecord) []models.ResetRecord {
	out := make([]models.ResetRecord, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

// resetsPerRecord marks successful resets as 1 and everything else as 0.
func resetsPerRecord(records []models.ResetRecord) []float64 {
	out := make([]float64, len(records))
	for i := range records {
		if records[i].Status == models.OutcomeSuccess {
			out[i] = 1
		}
	}
	return out
}
