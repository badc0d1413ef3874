package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// migrations are applied in order. The index plus one is the schema version
// recorded in PRAGMA user_version. Append only.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS schedule_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		timezone TEXT NOT NULL,
		first_reset TEXT NOT NULL,
		second_reset TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS execution_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		date TEXT NOT NULL DEFAULT '',
		first_done INTEGER NOT NULL DEFAULT 0,
		second_done INTEGER NOT NULL DEFAULT 0,
		last_first_run_at TEXT,
		last_second_run_at TEXT
	);
	CREATE TABLE IF NOT EXISTS preferences (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		notifications_enabled INTEGER NOT NULL DEFAULT 1,
		audit_retention INTEGER NOT NULL DEFAULT 500
	);
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		event TEXT NOT NULL,
		account_id TEXT,
		message TEXT NOT NULL,
		details TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
	`,
	`
	CREATE TABLE IF NOT EXISTS reset_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		account_id TEXT NOT NULL,
		subscription_id INTEGER NOT NULL,
		reset_type TEXT NOT NULL,
		status TEXT NOT NULL,
		credits_before REAL DEFAULT 0,
		credits_after REAL DEFAULT 0,
		message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reset_history_account ON reset_history(account_id, timestamp);
	`,
}

// SchemaVersion returns the applied schema version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func (db *DB) migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
