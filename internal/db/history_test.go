package db

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

func seedHistory(t *testing.T, db *DB) time.Time {
	t.Helper()
	base := time.Date(2025, 10, 18, 10, 55, 0, 0, time.UTC)
	records := []models.ResetRecord{
		{Timestamp: base, AccountID: "a", SubscriptionID: 1, ResetType: models.ResetFirst, Status: models.OutcomeSuccess, CreditsBefore: 3, CreditsAfter: 50},
		{Timestamp: base.Add(5 * time.Hour), AccountID: "a", SubscriptionID: 1, ResetType: models.ResetSecond, Status: models.OutcomeSuccess, CreditsBefore: 8, CreditsAfter: 50},
		{Timestamp: base.Add(time.Hour), AccountID: "b", SubscriptionID: 7, ResetType: models.ResetManual, Status: models.OutcomeFailed, Message: "timeout"},
	}
	for _, r := range records {
		if err := db.RecordReset(context.Background(), r); err != nil {
			t.Fatalf("RecordReset() failed: %v", err)
		}
	}
	return base
}

func TestGetHistory_AllAccountsChronological(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	base := seedHistory(t, db)

	records, err := db.GetHistory(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("GetHistory() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("GetHistory() returned %d records, want 3", len(records))
	}
	if !records[0].Timestamp.Equal(base) {
		t.Errorf("records[0].Timestamp = %v, want %v", records[0].Timestamp, base)
	}
	if records[1].AccountID != "b" || records[1].Message != "timeout" || records[1].Status != models.OutcomeFailed {
		t.Errorf("records[1] = %+v", records[1])
	}
	if records[2].ResetType != models.ResetSecond || records[2].CreditsAfter != 50 {
		t.Errorf("records[2] = %+v", records[2])
	}
}

func TestGetHistory_FilterAndLimit(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	seedHistory(t, db)

	records, err := db.GetHistory(context.Background(), "a", 1)
	if err != nil {
		t.Fatalf("GetHistory() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("GetHistory() returned %d records, want 1", len(records))
	}
	if records[0].ResetType != models.ResetSecond {
		t.Errorf("limit should keep the latest record, got %s", records[0].ResetType)
	}
}

func TestDeleteAccountHistory(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	seedHistory(t, db)
	ctx := context.Background()

	if err := db.DeleteAccountHistory(ctx, "a"); err != nil {
		t.Fatalf("DeleteAccountHistory() failed: %v", err)
	}

	records, _ := db.GetHistory(ctx, "", 10)
	if len(records) != 1 || records[0].AccountID != "b" {
		t.Errorf("GetHistory() after delete = %+v", records)
	}
}
