package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// AppendAudit stores one audit entry and prunes entries beyond the retention.
func (db *DB) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	level := e.Level
	if level == "" {
		level = models.AuditInfo
	}

	var details any
	if len(e.Details) > 0 {
		details = string(e.Details)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, level, event, account_id, message, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, formatTime(ts), string(level), e.Event, nullString(e.AccountID), e.Message, details)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return db.pruneAudit(ctx)
}

// GetAudit returns up to limit entries, newest first.
func (db *DB) GetAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, level, event, COALESCE(account_id, ''), message, COALESCE(details, '')
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e           models.AuditEntry
			ts, details string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Level, &e.Event, &e.AccountID, &e.Message, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if details != "" {
			e.Details = []byte(details)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ClearAudit deletes every audit entry and returns how many were removed.
func (db *DB) ClearAudit(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM audit_log")
	if err != nil {
		return 0, fmt.Errorf("failed to clear audit log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared audit entries: %w", err)
	}
	return n, nil
}

// AuditCount returns the number of stored audit entries.
func (db *DB) AuditCount(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

func (db *DB) pruneAudit(ctx context.Context) error {
	keep := db.retention.Load()
	if keep <= 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		DELETE FROM audit_log
		WHERE id NOT IN (SELECT id FROM audit_log ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune audit log: %w", err)
	}
	return nil
}
