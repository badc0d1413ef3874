package db

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

func TestGetScheduleConfig_DefaultsWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	cfg, err := db.GetScheduleConfig(context.Background())
	if err != nil {
		t.Fatalf("GetScheduleConfig() failed: %v", err)
	}
	if cfg != models.DefaultScheduleConfig() {
		t.Errorf("GetScheduleConfig() = %+v, want defaults", cfg)
	}
}

func TestSaveScheduleConfig_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	want := models.ScheduleConfig{
		Timezone:    "Europe/Madrid",
		FirstReset:  models.TimeOfDay{Hour: 7, Minute: 5},
		SecondReset: models.TimeOfDay{Hour: 21, Minute: 30},
		Enabled:     false,
	}
	if err := db.SaveScheduleConfig(ctx, want); err != nil {
		t.Fatalf("SaveScheduleConfig() failed: %v", err)
	}

	got, err := db.GetScheduleConfig(ctx)
	if err != nil {
		t.Fatalf("GetScheduleConfig() failed: %v", err)
	}
	if got != want {
		t.Errorf("GetScheduleConfig() = %+v, want %+v", got, want)
	}

	want.Enabled = true
	if err := db.SaveScheduleConfig(ctx, want); err != nil {
		t.Fatalf("second SaveScheduleConfig() failed: %v", err)
	}
	got, _ = db.GetScheduleConfig(ctx)
	if !got.Enabled {
		t.Error("SaveScheduleConfig() should overwrite the existing row")
	}
}

func TestSeed_DoesNotOverwrite(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seed := models.DefaultScheduleConfig()
	prefs := models.Preferences{NotificationsEnabled: false, AuditRetention: 10}
	if err := db.Seed(ctx, seed, prefs); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	edited := seed
	edited.FirstReset = models.TimeOfDay{Hour: 6}
	if err := db.SaveScheduleConfig(ctx, edited); err != nil {
		t.Fatalf("SaveScheduleConfig() failed: %v", err)
	}

	if err := db.Seed(ctx, seed, models.DefaultPreferences()); err != nil {
		t.Fatalf("second Seed() failed: %v", err)
	}

	got, _ := db.GetScheduleConfig(ctx)
	if got.FirstReset != edited.FirstReset {
		t.Errorf("Seed() overwrote edited schedule: got %s", got.FirstReset)
	}
	gotPrefs, _ := db.GetPreferences(ctx)
	if gotPrefs != prefs {
		t.Errorf("Seed() overwrote preferences: got %+v", gotPrefs)
	}
	if db.retention.Load() != 10 {
		t.Errorf("retention = %d, want stored value 10", db.retention.Load())
	}
}

func TestExecutionState_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	empty, err := db.GetExecutionState(ctx)
	if err != nil {
		t.Fatalf("GetExecutionState() failed: %v", err)
	}
	if empty.Date != "" || empty.FirstDone || empty.SecondDone {
		t.Errorf("fresh state = %+v, want zero", empty)
	}

	ranAt := time.Date(2025, 10, 18, 10, 55, 3, 120, time.UTC)
	state := models.ExecutionDayState{Date: "2025-10-18"}
	state.MarkDone(models.ResetFirst, ranAt)
	if err := db.SaveExecutionState(ctx, state); err != nil {
		t.Fatalf("SaveExecutionState() failed: %v", err)
	}

	got, err := db.GetExecutionState(ctx)
	if err != nil {
		t.Fatalf("GetExecutionState() failed: %v", err)
	}
	if got.Date != "2025-10-18" || !got.FirstDone || got.SecondDone {
		t.Errorf("GetExecutionState() = %+v", got)
	}
	if got.LastFirstRunAt == nil || !got.LastFirstRunAt.Equal(ranAt) {
		t.Errorf("LastFirstRunAt = %v, want %v", got.LastFirstRunAt, ranAt)
	}
	if got.LastSecondRunAt != nil {
		t.Errorf("LastSecondRunAt = %v, want nil", got.LastSecondRunAt)
	}
}

func TestPreferences_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	got, err := db.GetPreferences(ctx)
	if err != nil {
		t.Fatalf("GetPreferences() failed: %v", err)
	}
	if got != models.DefaultPreferences() {
		t.Errorf("GetPreferences() = %+v, want defaults", got)
	}

	want := models.Preferences{NotificationsEnabled: false, AuditRetention: 3}
	if err := db.SavePreferences(ctx, want); err != nil {
		t.Fatalf("SavePreferences() failed: %v", err)
	}
	got, _ = db.GetPreferences(ctx)
	if got != want {
		t.Errorf("GetPreferences() = %+v, want %+v", got, want)
	}
}

func TestNullString(t *testing.T) {
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("x"); !ns.Valid || ns.String != "x" {
		t.Errorf("nullString(\"x\") = %+v", ns)
	}
}
