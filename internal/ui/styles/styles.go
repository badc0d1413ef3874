// Package styles holds the palette and lipgloss styles shared by the tabs.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// Palette.
var (
	Primary = lipgloss.Color("205")
	Subtle  = lipgloss.Color("240")

	Success = lipgloss.Color("42")
	Error   = lipgloss.Color("196")
	Warning = lipgloss.Color("220")
	Info    = lipgloss.Color("39")

	Panel = lipgloss.Color("235")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")

	// Reset history series.
	ChartBefore = lipgloss.Color("#FF5F87")
	ChartAfter  = lipgloss.Color("#04B575")
)

// Credit thresholds, in percent of the plan limit.
const (
	CreditsHealthy = 50
	CreditsLow     = 20
)

// Layout.
var (
	DocStyle = lipgloss.NewStyle().Margin(1, 2).Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(1, 2).
			MarginBottom(1)

	CardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)

	// ToastStyle frames the floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)

	HelpPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Primary).
			Padding(1, 3).
			Background(Panel)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(Subtle)
)

// Text.
var (
	FocusedStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(TextSecondary).Width(16)
	ValueStyle   = lipgloss.NewStyle().Foreground(TextPrimary)
	HelpStyle    = lipgloss.NewStyle().Foreground(Subtle)

	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Error)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(Success)
	WarningTextStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(Info)
)

// CreditsStyle colors a remaining-credits percentage.
func CreditsStyle(percent float64) lipgloss.Style {
	switch {
	case percent > CreditsHealthy:
		return SuccessTextStyle
	case percent > CreditsLow:
		return WarningTextStyle
	default:
		return ErrorTextStyle
	}
}

// LevelStyle colors an audit level.
func LevelStyle(level models.AuditLevel) lipgloss.Style {
	switch level {
	case models.AuditError:
		return ErrorTextStyle
	case models.AuditWarning:
		return WarningTextStyle
	default:
		return InfoTextStyle
	}
}

// CenterBoth centers content in a width x height box.
func CenterBoth(content string, width, height int) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
