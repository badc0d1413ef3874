package logs

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/credit-reset-dashboard/internal/app"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

func testState() *app.State {
	state := app.NewState()
	now := time.Now()
	state.SetLogs([]models.AuditEntry{
		{ID: 3, Timestamp: now, Level: models.AuditError, Event: "reset.run", AccountID: "acc-1", Message: "reset failed"},
		{ID: 2, Timestamp: now, Level: models.AuditWarning, Event: "reset.skip", Message: "cooldown active"},
		{ID: 1, Timestamp: now, Level: models.AuditInfo, Event: "schedule.update", Message: "schedule saved"},
	})
	return state
}

func TestNew(t *testing.T) {
	m := New(app.NewState())
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() != nil {
		t.Error("Init should not start commands")
	}
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
}

func TestModel_ViewEmpty(t *testing.T) {
	m := New(app.NewState())
	m.SetSize(100, 20)

	if !strings.Contains(m.View(), "No log entries") {
		t.Error("empty log should say so")
	}
}

func TestModel_View(t *testing.T) {
	m := New(testState())
	m.SetSize(140, 30)
	m.Update(app.LogsLoadedMsg{})

	view := m.View()
	for _, want := range []string{"Audit Log", "3 entries", "reset failed", "cooldown active", "schedule saved", "acc-1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_Filter(t *testing.T) {
	m := New(testState())
	m.SetSize(140, 30)

	f := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")}

	m.Update(f)
	if got := len(m.visibleEntries()); got != 2 {
		t.Errorf("warn filter shows %d entries, want 2", got)
	}
	if strings.Contains(m.View(), "schedule saved") {
		t.Error("info entries should be hidden")
	}

	m.Update(f)
	if got := len(m.visibleEntries()); got != 1 {
		t.Errorf("error filter shows %d entries, want 1", got)
	}

	m.Update(f)
	if got := len(m.visibleEntries()); got != 3 {
		t.Errorf("filter should cycle back to all, got %d", got)
	}
}

func TestVisibleEntriesDoesNotMutateState(t *testing.T) {
	state := testState()
	m := New(state)
	m.filter = filterError

	m.visibleEntries()

	if logs := state.GetLogs(); logs[1].ID != 2 {
		t.Errorf("state logs changed: %+v", logs)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a-very-long-event-name", 8); got != "a-very-…" {
		t.Errorf("truncate = %q", got)
	}
}
