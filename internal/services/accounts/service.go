// Package accounts provides account management with file watching and persistence.
package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
)

// fileVersion is written to every saved accounts file.
const fileVersion = 1

// AccountsFile represents the JSON file structure for accounts storage.
type AccountsFile struct {
	Accounts []models.Account `json:"accounts"`
	Version  int              `json:"version,omitempty"`
}

// Event represents an account service event.
type Event struct {
	Error   error
	Account *models.Account
	Type    EventType
}

// EventType defines the type of account event.
type EventType int

const (
	EventAccountsLoaded EventType = iota
	EventAccountsChanged
	EventAccountAdded
	EventAccountUpdated
	EventAccountDeleted
	EventError
)

// Update holds the fields UpdateAccount may change. Nil fields are kept.
type Update struct {
	Name    *string
	APIKey  *string
	Enabled *bool
}

// Service manages accounts with file watching and change notifications.
type Service struct {
	mu            sync.RWMutex
	accounts      []models.Account
	filePath      string
	watcher       *fsnotify.Watcher
	onChange      func()
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	now           func() time.Time
}

// defaultAccountsPath returns the default accounts file path.
func defaultAccountsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "credit-reset", "accounts.json")
}

// New creates a new accounts service and starts file watching.
func New(filePath string) (*Service, error) {
	if filePath == "" {
		filePath = defaultAccountsPath()
	}

	s := &Service{
		accounts:  make([]models.Account, 0),
		filePath:  filePath,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	repaired, err := s.reload()
	switch {
	case os.IsNotExist(err):
		// Create an empty accounts file
		if err := s.saveAccounts(); err != nil {
			return nil, fmt.Errorf("failed to create accounts file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	case repaired:
		if err := s.saveAccounts(); err != nil {
			return nil, fmt.Errorf("failed to save repaired accounts: %w", err)
		}
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountsLoaded})

	return s, nil
}

// Path returns the accounts file path.
func (s *Service) Path() string {
	return s.filePath
}

// Events returns the event channel for subscribing to account changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// SetOnChange registers a callback run after an external edit is reloaded.
func (s *Service) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// GetAccounts returns a copy of all accounts.
func (s *Service) GetAccounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]models.Account, len(s.accounts))
	copy(accounts, s.accounts)
	return accounts
}

// EnabledAccounts returns a copy of the accounts the engine should process.
func (s *Service) EnabledAccounts() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []models.Account
	for _, acc := range s.accounts {
		if acc.Enabled {
			accounts = append(accounts, acc)
		}
	}
	return accounts
}

// GetAccount returns the account with the given ID.
func (s *Service) GetAccount(id string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Account{}, apperr.New(apperr.CodeNotFound, "account not found: %s", id)
	}
	return s.accounts[idx], nil
}

// Count returns the number of accounts.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// AddAccount registers a new enabled account. The API key must be unique.
func (s *Service) AddAccount(name, apiKey string) (models.Account, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return models.Account{}, apperr.New(apperr.CodeInvalidInput, "api key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyTakenLocked(apiKey, "") {
		return models.Account{}, apperr.New(apperr.CodeDuplicateCredential, "an account with this api key already exists")
	}

	now := s.now()
	account := models.Account{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		APIKey:    apiKey,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.accounts = append(s.accounts, account)

	if err := s.saveAccountsLocked(); err != nil {
		// Rollback
		s.accounts = s.accounts[:len(s.accounts)-1]
		return models.Account{}, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountAdded, Account: &account})
	return account, nil
}

// UpdateAccount applies u to the account with the given ID.
func (s *Service) UpdateAccount(id string, u Update) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Account{}, apperr.New(apperr.CodeNotFound, "account not found: %s", id)
	}

	previous := s.accounts[idx]
	account := previous
	if u.Name != nil {
		account.Name = strings.TrimSpace(*u.Name)
	}
	if u.APIKey != nil {
		key := strings.TrimSpace(*u.APIKey)
		if key == "" {
			return models.Account{}, apperr.New(apperr.CodeInvalidInput, "api key must not be empty")
		}
		if s.keyTakenLocked(key, id) {
			return models.Account{}, apperr.New(apperr.CodeDuplicateCredential, "an account with this api key already exists")
		}
		account.APIKey = key
	}
	if u.Enabled != nil {
		account.Enabled = *u.Enabled
	}
	account.UpdatedAt = s.now()

	s.accounts[idx] = account

	if err := s.saveAccountsLocked(); err != nil {
		s.accounts[idx] = previous
		return models.Account{}, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountUpdated, Account: &account})
	return account, nil
}

// SetEnabled enables or disables an account.
func (s *Service) SetEnabled(id string, enabled bool) (models.Account, error) {
	return s.UpdateAccount(id, Update{Enabled: &enabled})
}

// DeleteAccount removes an account by ID and returns it.
func (s *Service) DeleteAccount(id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Account{}, apperr.New(apperr.CodeNotFound, "account not found: %s", id)
	}

	previous := s.accounts
	deleted := s.accounts[idx]
	s.accounts = append(append(make([]models.Account, 0, len(previous)-1), previous[:idx]...), previous[idx+1:]...)

	if err := s.saveAccountsLocked(); err != nil {
		s.accounts = previous
		return models.Account{}, fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountDeleted, Account: &deleted})
	return deleted, nil
}

func (s *Service) indexLocked(id string) int {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// keyTakenLocked reports whether another account than exceptID uses key.
func (s *Service) keyTakenLocked(key, exceptID string) bool {
	for _, acc := range s.accounts {
		if acc.ID != exceptID && strings.TrimSpace(acc.APIKey) == key {
			return true
		}
	}
	return false
}

// parseAccounts accepts the versioned file format and a bare array. Missing
// IDs are generated and duplicate keys after the first are dropped; repaired
// reports whether either happened.
func (s *Service) parseAccounts(data []byte) (accounts []models.Account, repaired bool, err error) {
	var file AccountsFile
	if err := json.Unmarshal(data, &file); err == nil {
		accounts = file.Accounts
	} else if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, false, fmt.Errorf("failed to parse accounts file: invalid format")
	}

	seen := make(map[string]bool, len(accounts))
	out := make([]models.Account, 0, len(accounts))
	for _, acc := range accounts {
		key := strings.TrimSpace(acc.APIKey)
		if key == "" || seen[key] {
			logger.Warn("dropping account with empty or duplicate api key", "account", acc.DisplayName())
			repaired = true
			continue
		}
		seen[key] = true
		if acc.ID == "" {
			acc.ID = uuid.NewString()
			repaired = true
		}
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = s.now()
			acc.UpdatedAt = acc.CreatedAt
			repaired = true
		}
		out = append(out, acc)
	}
	return out, repaired, nil
}

// saveAccounts saves accounts to the JSON file (public version).
func (s *Service) saveAccounts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccountsLocked()
}

// saveAccountsLocked saves accounts to the JSON file (must hold lock).
func (s *Service) saveAccountsLocked() error {
	accountsFile := AccountsFile{
		Accounts: s.accounts,
		Version:  fileVersion,
	}

	data, err := json.MarshalIndent(accountsFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// startWatcher starts the file system watcher.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory (to catch file creation/deletion)
	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.mu.Lock()
				if s.debounceTimer != nil {
					s.debounceTimer.Stop()
				}
				s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
				s.mu.Unlock()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads accounts from file after external change.
func (s *Service) handleFileChange() {
	if _, err := s.reload(); err != nil {
		logger.Warn("failed to reload accounts file", "path", s.filePath, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	s.sendEvent(Event{Type: EventAccountsChanged})

	s.mu.RLock()
	onChange := s.onChange
	s.mu.RUnlock()

	if onChange != nil {
		onChange()
	}
}

// reload reads the accounts file and replaces the in-memory list.
func (s *Service) reload() (bool, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return false, err
	}

	accounts, repaired, err := s.parseAccounts(data)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
	return repaired, nil
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	close(s.stopChan)

	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.mu.Unlock()

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
