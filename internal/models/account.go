// Package models defines data structures and domain types.
package models

import (
	"strings"
	"time"
)

// Account is a registered API key whose subscriptions the engine resets.
type Account struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"apiKey"`
	Enabled   bool      `json:"enabled"`
}

// MaskedKey returns the API key with all but the last four characters hidden.
func (a *Account) MaskedKey() string {
	key := strings.TrimSpace(a.APIKey)
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}

// DisplayName returns the name, or the masked key when no name is set.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.MaskedKey()
}

// Clone returns a copy of the account.
func (a *Account) Clone() Account {
	return *a
}

// AccountView is an account as exposed to presentation layers.
type AccountView struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MaskedKey string    `json:"maskedKey"`
	Enabled   bool      `json:"enabled"`
}

// View converts the account to its presentation form.
func (a *Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Name:      a.Name,
		MaskedKey: a.MaskedKey(),
		Enabled:   a.Enabled,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
