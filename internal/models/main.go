// Package models defines the core data structures shared by the vault
// client and the vault backend.
package models

import "time"

// VaultMeta holds the user-provided, unencrypted details of a vault.
type VaultMeta struct {
	// Description is a free-form note shown next to the vault name.
	Description string `json:"description,omitempty"`
	// PasswordHint helps the user remember the vault password.
	PasswordHint string `json:"passwordHint,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m VaultMeta) IsZero() bool {
	return m == VaultMeta{}
}

// Vault is a named container of accounts as reported by the backend.
// Records are replaced wholesale on every reload, never edited in place.
type Vault struct {
	// Name is the display name of the vault. Uniqueness is case-insensitive.
	Name string `json:"name"`
	// Meta carries the description and password hint; empty when never set.
	Meta VaultMeta `json:"meta"`
	// IsOpen reports whether the vault is currently unlocked on the backend.
	IsOpen bool `json:"isOpen"`
}

// StoredVault is the backend's persisted view of a vault.
type StoredVault struct {
	// Name is the display name as created.
	Name string `json:"name"`
	// PasswordHash is the bcrypt hash of the vault password.
	PasswordHash []byte `json:"passwordHash"`
	// Meta is nil until metadata has been set once.
	Meta *VaultMeta `json:"meta,omitempty"`
	// OpenedAt is set while the vault is open.
	OpenedAt *time.Time `json:"openedAt,omitempty"`
	// CreatedAt orders vault listings.
	CreatedAt time.Time `json:"createdAt"`
}
