package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

func TestAppendAudit_AndGet(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	ts := time.Date(2025, 10, 18, 10, 55, 0, 0, time.UTC)
	first := models.AuditEntry{
		Timestamp: ts,
		Level:     models.AuditWarning,
		Event:     "scheduled_reset",
		AccountID: "acc-1",
		Message:   "1 ok, 0 partial, 1 failed, 0 skipped",
		Details:   []byte(`{"failed":1}`),
	}
	if err := db.AppendAudit(ctx, first); err != nil {
		t.Fatalf("AppendAudit() failed: %v", err)
	}
	if err := db.AppendAudit(ctx, models.AuditEntry{Event: "manual_reset", Message: "nothing to reset"}); err != nil {
		t.Fatalf("AppendAudit() failed: %v", err)
	}

	entries, err := db.GetAudit(ctx, 10)
	if err != nil {
		t.Fatalf("GetAudit() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetAudit() returned %d entries, want 2", len(entries))
	}

	// Newest first.
	if entries[0].Event != "manual_reset" {
		t.Errorf("entries[0].Event = %s, want manual_reset", entries[0].Event)
	}
	if entries[0].Level != models.AuditInfo {
		t.Errorf("default level = %s, want INFO", entries[0].Level)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("AppendAudit() should stamp a missing timestamp")
	}

	got := entries[1]
	if got.ID == 0 {
		t.Error("ID should be set")
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Level != models.AuditWarning || got.AccountID != "acc-1" {
		t.Errorf("entry = %+v", got)
	}
	if string(got.Details) != `{"failed":1}` {
		t.Errorf("Details = %s", got.Details)
	}
}

func TestGetAudit_Limit(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for i := range 5 {
		if err := db.AppendAudit(ctx, models.AuditEntry{Event: "e", Message: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("AppendAudit() failed: %v", err)
		}
	}

	entries, err := db.GetAudit(ctx, 2)
	if err != nil {
		t.Fatalf("GetAudit() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetAudit(2) returned %d entries", len(entries))
	}
	if entries[0].Message != "m4" || entries[1].Message != "m3" {
		t.Errorf("GetAudit(2) = %s, %s", entries[0].Message, entries[1].Message)
	}
}

func TestAppendAudit_Retention(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if err := db.SavePreferences(ctx, models.Preferences{AuditRetention: 3}); err != nil {
		t.Fatalf("SavePreferences() failed: %v", err)
	}

	for i := range 6 {
		if err := db.AppendAudit(ctx, models.AuditEntry{Event: "e", Message: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("AppendAudit() failed: %v", err)
		}
	}

	n, err := db.AuditCount(ctx)
	if err != nil {
		t.Fatalf("AuditCount() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("AuditCount() = %d, want 3", n)
	}

	entries, _ := db.GetAudit(ctx, 10)
	if entries[len(entries)-1].Message != "m3" {
		t.Errorf("oldest kept entry = %s, want m3", entries[len(entries)-1].Message)
	}

	// Lowering the retention prunes immediately.
	if err := db.SavePreferences(ctx, models.Preferences{AuditRetention: 1}); err != nil {
		t.Fatalf("SavePreferences() failed: %v", err)
	}
	if n, _ := db.AuditCount(ctx); n != 1 {
		t.Errorf("AuditCount() after lowering retention = %d, want 1", n)
	}
}

func TestAppendAudit_ZeroRetentionKeepsAll(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if err := db.SavePreferences(ctx, models.Preferences{AuditRetention: 0}); err != nil {
		t.Fatalf("SavePreferences() failed: %v", err)
	}
	for range 4 {
		if err := db.AppendAudit(ctx, models.AuditEntry{Event: "e", Message: "m"}); err != nil {
			t.Fatalf("AppendAudit() failed: %v", err)
		}
	}
	if n, _ := db.AuditCount(ctx); n != 4 {
		t.Errorf("AuditCount() = %d, want 4", n)
	}
}

func TestClearAudit(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for range 3 {
		if err := db.AppendAudit(ctx, models.AuditEntry{Event: "e", Message: "m"}); err != nil {
			t.Fatalf("AppendAudit() failed: %v", err)
		}
	}

	n, err := db.ClearAudit(ctx)
	if err != nil {
		t.Fatalf("ClearAudit() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("ClearAudit() = %d, want 3", n)
	}

	entries, err := db.GetAudit(ctx, 10)
	if err != nil {
		t.Fatalf("GetAudit() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("GetAudit() after clear returned %d entries", len(entries))
	}
}
