package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/credit-reset-dashboard/internal/ui/styles"
)

// Activity is something the dashboard waits on. Higher values win when
// several are in flight.
type Activity int

const (
	ActivityIdle Activity = iota
	ActivityLogs
	ActivityHistory
	ActivityAccounts
	ActivityStatus
	ActivityReset
)

// Label is the text shown next to the spinner.
func (a Activity) Label() string {
	switch a {
	case ActivityLogs:
		return "Loading audit log..."
	case ActivityHistory:
		return "Loading reset history..."
	case ActivityAccounts:
		return "Loading accounts..."
	case ActivityStatus:
		return "Fetching credit status..."
	case ActivityReset:
		return "Resetting credits..."
	default:
		return ""
	}
}

// Busiest returns the highest priority activity of acts.
func Busiest(acts ...Activity) Activity {
	top := ActivityIdle
	for _, a := range acts {
		top = max(top, a)
	}
	return top
}

// Loader is a spinner labelled with the activity in progress. A reset
// pulses in the warning color; everything else uses the dot spinner.
type Loader struct {
	spinner  spinner.Model
	activity Activity
	label    lipgloss.Style
}

// NewLoader creates a loader showing a.
func NewLoader(a Activity) Loader {
	l := Loader{
		spinner: spinner.New(),
		label:   lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
	l.Set(a)
	return l
}

// Set switches the activity and restyles the spinner to match.
func (l *Loader) Set(a Activity) {
	l.activity = a
	if a == ActivityReset {
		l.spinner.Spinner = spinner.Pulse
		l.spinner.Style = lipgloss.NewStyle().Foreground(styles.Warning)
		return
	}
	l.spinner.Spinner = spinner.Dot
	l.spinner.Style = lipgloss.NewStyle().Foreground(styles.Primary)
}

func (l Loader) Activity() Activity {
	return l.activity
}

func (l Loader) Init() tea.Cmd {
	return l.spinner.Tick
}

func (l Loader) Update(msg tea.Msg) (Loader, tea.Cmd) {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return l, cmd
}

// View renders the spinner and label, or nothing when idle.
func (l Loader) View() string {
	if l.activity == ActivityIdle {
		return ""
	}
	return l.spinner.View() + " " + l.label.Render(l.activity.Label())
}

// RenderLoaderCentered renders the loader in the middle of the area.
func RenderLoaderCentered(l Loader, width, height int) string {
	return styles.CenterBoth(l.View(), width, height)
}
