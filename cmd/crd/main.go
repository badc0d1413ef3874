// Package main is the entry point for the credit reset dashboard.
// It loads configuration, starts the scheduler and runs either the
// terminal UI or, with --headless, only the scheduler and control API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/credit-reset-dashboard/internal/app"
	"github.com/j-veylop/credit-reset-dashboard/internal/config"
	"github.com/j-veylop/credit-reset-dashboard/internal/httpapi"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/tabs/accounts"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/tabs/dashboard"
	"github.com/j-veylop/credit-reset-dashboard/internal/ui/tabs/logs"
	"github.com/j-veylop/credit-reset-dashboard/internal/version"
)

const logFileName = "credit-reset.log"

func main() {
	headless := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-v", "--version":
			fmt.Println(version.Info())
			os.Exit(0)
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		case "--headless":
			headless = true
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q, see --help\n", arg)
			os.Exit(2)
		}
	}

	if err := run(headless); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(headless bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out, closeLog, err := logOutput(cfg, headless)
	if err != nil {
		return err
	}
	defer closeLog()

	log := logger.New(cfg.LogLevel, cfg.LogFormat, out)
	logger.Init(log)
	log.Info("starting", slog.String("version", version.Info()), slog.Bool("headless", headless))

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Error("error closing services", logger.Err(closeErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(log, mgr, mgr, mgr.Registry()), log)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if headless {
		g.Go(func() error {
			<-ctx.Done()
			log.Info("shutting down")
			return nil
		})
		return g.Wait()
	}

	g.Go(func() error {
		defer cancel()
		return runTUI(ctx, mgr)
	})
	return g.Wait()
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, mgr *services.Manager) error {
	model := app.NewModel(mgr)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		logs.New(state),
		accounts.New(state),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// logOutput picks the log destination. The TUI owns the terminal, so it
// always logs to a file; headless mode logs to stderr unless a file is set.
func logOutput(cfg *config.Config, headless bool) (io.Writer, func(), error) {
	path := cfg.LogFile
	if path == "" {
		if headless {
			return os.Stderr, func() {}, nil
		}
		path = filepath.Join(filepath.Dir(cfg.DatabasePath), logFileName)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func printUsage() {
	fmt.Println(`Credit Reset Dashboard - scheduled credit resets for subscription API keys

Usage:
  crd [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information
  --headless      Run the scheduler and control API without the terminal UI

Keyboard Shortcuts:
  1-3             Switch between tabs (Dashboard, Log, Accounts)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Select account / scroll log
  r               Refresh status, accounts and log
  m               Reset credits now
  s               Enable or disable the schedule
  f               Cycle the log level filter
  n, Space, d     Add, enable/disable or delete an account
  ?               Toggle help
  q, Ctrl+C       Quit

Configuration:
  The application looks for a .env file in the current directory,
  ~/.config/credit-reset/.env, ~/.credit-reset/.env and the parent directory.
  Environment variables take precedence.`)

	header := "\nEnvironment Variables:"
	if desc, err := cleanenv.GetDescription(&config.Config{}, &header); err == nil {
		fmt.Println(desc)
	}
}
