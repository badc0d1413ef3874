package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day key used by ExecutionDayState.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time. Its text form is HH:MM.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On returns the instant this time of day falls on the calendar day of ref in loc.
func (t TimeOfDay) On(ref time.Time, loc *time.Location) time.Time {
	ref = ref.In(loc)
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// ScheduleConfig holds the two daily reset times.
type ScheduleConfig struct {
	Timezone    string    `json:"timezone"`
	FirstReset  TimeOfDay `json:"firstReset"`
	SecondReset TimeOfDay `json:"secondReset"`
	Enabled     bool      `json:"enabled"`
}

// Default schedule values.
const (
	DefaultTimezone = "Asia/Shanghai"
)

var (
	DefaultFirstReset  = TimeOfDay{Hour: 18, Minute: 55}
	DefaultSecondReset = TimeOfDay{Hour: 23, Minute: 56}
)

// DefaultScheduleConfig returns the schedule used before the user edits it.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		FirstReset:  DefaultFirstReset,
		SecondReset: DefaultSecondReset,
		Timezone:    DefaultTimezone,
		Enabled:     true,
	}
}

// Location loads the configured timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate checks both times and the timezone.
func (c ScheduleConfig) Validate() error {
	if !c.FirstReset.Valid() {
		return fmt.Errorf("first reset time %s out of range", c.FirstReset)
	}
	if !c.SecondReset.Valid() {
		return fmt.Errorf("second reset time %s out of range", c.SecondReset)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// TimeFor returns the configured time for a scheduled reset type.
func (c ScheduleConfig) TimeFor(t ResetType) (TimeOfDay, bool) {
	switch t {
	case ResetFirst:
		return c.FirstReset, true
	case ResetSecond:
		return c.SecondReset, true
	default:
		return TimeOfDay{}, false
	}
}

// ExecutionDayState records which scheduled slots ran on Date.
type ExecutionDayState struct {
	LastFirstRunAt  *time.Time `json:"lastFirstRunAt,omitempty"`
	LastSecondRunAt *time.Time `json:"lastSecondRunAt,omitempty"`
	Date            string     `json:"date"`
	FirstDone       bool       `json:"firstDone"`
	SecondDone      bool       `json:"secondDone"`
}

// Rollover clears both flags when date differs from the stored date.
// It reports whether a rollover happened.
func (s *ExecutionDayState) Rollover(date string) bool {
	if s.Date == date {
		return false
	}
	s.Date = date
	s.FirstDone = false
	s.SecondDone = false
	return true
}

// Done reports whether the slot for t already ran.
func (s *ExecutionDayState) Done(t ResetType) bool {
	switch t {
	case ResetFirst:
		return s.FirstDone
	case ResetSecond:
		return s.SecondDone
	default:
		return false
	}
}

// MarkDone consumes the slot for t.
func (s *ExecutionDayState) MarkDone(t ResetType, at time.Time) {
	switch t {
	case ResetFirst:
		s.FirstDone = true
		s.LastFirstRunAt = &at
	case ResetSecond:
		s.SecondDone = true
		s.LastSecondRunAt = &at
	}
}

// Preferences are user settings outside the schedule.
type Preferences struct {
	NotificationsEnabled bool `json:"notificationsEnabled"`
	AuditRetention       int  `json:"auditRetention" validate:"min=0,max=100000"`
}

// DefaultAuditRetention is the number of audit entries kept.
const DefaultAuditRetention = 500

// DefaultPreferences returns preferences used before the user edits them.
func DefaultPreferences() Preferences {
	return Preferences{
		NotificationsEnabled: true,
		AuditRetention:       DefaultAuditRetention,
	}
}
