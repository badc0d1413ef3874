// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

const appDir = "credit-reset"

// Config holds the application configuration.
type Config struct {
	DatabasePath      string        `env:"CRD_DATABASE_PATH" env-description:"SQLite database file"`
	AccountsPath      string        `env:"CRD_ACCOUNTS_PATH" env-description:"accounts JSON file"`
	APIBaseURL        string        `env:"CRD_API_BASE_URL" env-default:"https://www.88code.org"`
	HTTPAddr          string        `env:"CRD_HTTP_ADDR" env-description:"control API listen address, empty disables it"`
	LogLevel          string        `env:"CRD_LOG_LEVEL" env-default:"info"`
	LogFormat         string        `env:"CRD_LOG_FORMAT" env-default:"text"`
	LogFile           string        `env:"CRD_LOG_FILE"`
	Timezone          string        `env:"CRD_TIMEZONE" env-default:"Asia/Shanghai"`
	FirstReset        string        `env:"CRD_FIRST_RESET" env-default:"18:55"`
	SecondReset       string        `env:"CRD_SECOND_RESET" env-default:"23:56"`
	RequestTimeout    time.Duration `env:"CRD_REQUEST_TIMEOUT" env-default:"30s"`
	RateLimitInterval time.Duration `env:"CRD_RATE_LIMIT_INTERVAL" env-default:"60s"`
	RateLimitCapacity int           `env:"CRD_RATE_LIMIT_CAPACITY" env-default:"30"`
	RateLimitRefill   int           `env:"CRD_RATE_LIMIT_REFILL" env-default:"20"`
	Notifications     bool          `env:"CRD_NOTIFICATIONS" env-default:"true"`
}

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// The first .env found wins; real environment variables still take precedence.
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = getDefaultDatabasePath()
	}
	if cfg.AccountsPath == "" {
		cfg.AccountsPath = getDefaultAccountsPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Dir(cfg.AccountsPath)); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("CRD_API_BASE_URL must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CRD_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.RateLimitCapacity <= 0 {
		errs = append(errs, fmt.Errorf("CRD_RATE_LIMIT_CAPACITY must be positive, got %d", c.RateLimitCapacity))
	}
	if c.RateLimitRefill <= 0 {
		errs = append(errs, fmt.Errorf("CRD_RATE_LIMIT_REFILL must be positive, got %d", c.RateLimitRefill))
	}
	if c.RateLimitInterval <= 0 {
		errs = append(errs, fmt.Errorf("CRD_RATE_LIMIT_INTERVAL must be positive, got %s", c.RateLimitInterval))
	}
	if _, err := c.Schedule(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Schedule builds the seed schedule from the environment values.
func (c *Config) Schedule() (models.ScheduleConfig, error) {
	first, err := models.ParseTimeOfDay(c.FirstReset)
	if err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("CRD_FIRST_RESET: %w", err)
	}
	second, err := models.ParseTimeOfDay(c.SecondReset)
	if err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("CRD_SECOND_RESET: %w", err)
	}

	sc := models.ScheduleConfig{
		Timezone:    c.Timezone,
		FirstReset:  first,
		SecondReset: second,
		Enabled:     true,
	}
	if err := sc.Validate(); err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("CRD_TIMEZONE: %w", err)
	}
	return sc, nil
}

// Preferences builds the seed preferences.
func (c *Config) Preferences() models.Preferences {
	prefs := models.DefaultPreferences()
	prefs.NotificationsEnabled = c.Notifications
	return prefs
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", appDir, ".env"),
			filepath.Join(home, ".credit-reset", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credit-reset.db"
	}
	return filepath.Join(home, ".config", appDir, "credit-reset.db")
}

// getDefaultAccountsPath returns the default path for the accounts JSON file.
func getDefaultAccountsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "accounts.json"
	}
	return filepath.Join(home, ".config", appDir, "accounts.json")
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
