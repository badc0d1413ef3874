package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// RecordReset stores one executed subscription reset.
func (db *DB) RecordReset(ctx context.Context, r models.ResetRecord) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO reset_history (
			timestamp, account_id, subscription_id, reset_type, status,
			credits_before, credits_after, message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTime(ts), r.AccountID, r.SubscriptionID, string(r.ResetType), string(r.Status),
		r.CreditsBefore, r.CreditsAfter, nullString(r.Message))
	if err != nil {
		return fmt.Errorf("failed to insert reset record: %w", err)
	}
	return nil
}

// GetHistory returns the latest limit reset records in chronological order.
// An empty accountID matches every account.
func (db *DB) GetHistory(ctx context.Context, accountID string, limit int) ([]models.ResetRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, account_id, subscription_id, reset_type, status,
			   credits_before, credits_after, COALESCE(message, '')
		FROM reset_history
		WHERE ? = '' OR account_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, accountID, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reset history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var records []models.ResetRecord
	for rows.Next() {
		var (
			r  models.ResetRecord
			ts string
		)
		err := rows.Scan(&r.ID, &ts, &r.AccountID, &r.SubscriptionID, &r.ResetType, &r.Status,
			&r.CreditsBefore, &r.CreditsAfter, &r.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reset record: %w", err)
		}
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(records)
	return records, nil
}

// DeleteAccountHistory removes the reset history of one account.
func (db *DB) DeleteAccountHistory(ctx context.Context, accountID string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM reset_history WHERE account_id = ?", accountID)
	if err != nil {
		return fmt.Errorf("failed to delete reset history: %w", err)
	}
	return nil
}
