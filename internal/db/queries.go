package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// Seed stores the given schedule and preferences unless rows already exist.
// Values edited at runtime therefore survive restarts.
func (db *DB) Seed(ctx context.Context, schedule models.ScheduleConfig, prefs models.Preferences) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO schedule_config (id, timezone, first_reset, second_reset, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, singletonID, schedule.Timezone, schedule.FirstReset.String(), schedule.SecondReset.String(),
		schedule.Enabled, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to seed schedule config: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO preferences (id, notifications_enabled, audit_retention)
		VALUES (?, ?, ?)
	`, singletonID, prefs.NotificationsEnabled, prefs.AuditRetention)
	if err != nil {
		return fmt.Errorf("failed to seed preferences: %w", err)
	}

	// Pick up the stored retention, which may differ from the seed.
	stored, err := db.GetPreferences(ctx)
	if err != nil {
		return err
	}
	db.retention.Store(int64(stored.AuditRetention))
	return nil
}

// GetScheduleConfig returns the stored schedule, or the defaults when none is stored.
func (db *DB) GetScheduleConfig(ctx context.Context) (models.ScheduleConfig, error) {
	var (
		cfg           models.ScheduleConfig
		first, second string
	)
	err := db.QueryRowContext(ctx, `
		SELECT timezone, first_reset, second_reset, enabled
		FROM schedule_config WHERE id = ?
	`, singletonID).Scan(&cfg.Timezone, &first, &second, &cfg.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultScheduleConfig(), nil
	}
	if err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("failed to get schedule config: %w", err)
	}

	if cfg.FirstReset, err = models.ParseTimeOfDay(first); err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("stored first reset: %w", err)
	}
	if cfg.SecondReset, err = models.ParseTimeOfDay(second); err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("stored second reset: %w", err)
	}
	return cfg, nil
}

// SaveScheduleConfig replaces the stored schedule.
func (db *DB) SaveScheduleConfig(ctx context.Context, cfg models.ScheduleConfig) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO schedule_config (id, timezone, first_reset, second_reset, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timezone = excluded.timezone,
			first_reset = excluded.first_reset,
			second_reset = excluded.second_reset,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, singletonID, cfg.Timezone, cfg.FirstReset.String(), cfg.SecondReset.String(),
		cfg.Enabled, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save schedule config: %w", err)
	}
	return nil
}

// GetExecutionState returns the stored day state. A fresh database yields the zero state.
func (db *DB) GetExecutionState(ctx context.Context) (models.ExecutionDayState, error) {
	var (
		state                 models.ExecutionDayState
		lastFirst, lastSecond sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT date, first_done, second_done, last_first_run_at, last_second_run_at
		FROM execution_state WHERE id = ?
	`, singletonID).Scan(&state.Date, &state.FirstDone, &state.SecondDone, &lastFirst, &lastSecond)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ExecutionDayState{}, nil
	}
	if err != nil {
		return models.ExecutionDayState{}, fmt.Errorf("failed to get execution state: %w", err)
	}

	if state.LastFirstRunAt, err = nullTime(lastFirst); err != nil {
		return models.ExecutionDayState{}, err
	}
	if state.LastSecondRunAt, err = nullTime(lastSecond); err != nil {
		return models.ExecutionDayState{}, err
	}
	return state, nil
}

// SaveExecutionState replaces the stored day state.
func (db *DB) SaveExecutionState(ctx context.Context, state models.ExecutionDayState) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO execution_state (id, date, first_done, second_done, last_first_run_at, last_second_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			first_done = excluded.first_done,
			second_done = excluded.second_done,
			last_first_run_at = excluded.last_first_run_at,
			last_second_run_at = excluded.last_second_run_at
	`, singletonID, state.Date, state.FirstDone, state.SecondDone,
		nullTimeString(state.LastFirstRunAt), nullTimeString(state.LastSecondRunAt))
	if err != nil {
		return fmt.Errorf("failed to save execution state: %w", err)
	}
	return nil
}

// GetPreferences returns the stored preferences, or the defaults when none are stored.
func (db *DB) GetPreferences(ctx context.Context) (models.Preferences, error) {
	var prefs models.Preferences
	err := db.QueryRowContext(ctx, `
		SELECT notifications_enabled, audit_retention FROM preferences WHERE id = ?
	`, singletonID).Scan(&prefs.NotificationsEnabled, &prefs.AuditRetention)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreferences(), nil
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences replaces the stored preferences and prunes the audit log
// to the new retention.
func (db *DB) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO preferences (id, notifications_enabled, audit_retention)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notifications_enabled = excluded.notifications_enabled,
			audit_retention = excluded.audit_retention
	`, singletonID, prefs.NotificationsEnabled, prefs.AuditRetention)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	db.retention.Store(int64(prefs.AuditRetention))
	return db.pruneAudit(ctx)
}

func nullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
