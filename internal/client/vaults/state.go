package vaults

import (
	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/validation"
)

// State is one immutable snapshot of the vault store.
//
// Slices and maps inside a published State are never written again; every
// change builds new ones. Consumers must treat them as read-only.
type State struct {
	// Vaults is the backend-reported vault list, in backend order.
	Vaults []models.Vault
	// VaultNames is the lower-cased name index of Vaults.
	VaultNames map[string]struct{}
	// SelectedVault is the record whose name equals VaultName, if any.
	SelectedVault *models.Vault
	// SelectedAccounts is the address toggle set of the accounts modal.
	SelectedAccounts map[string]bool

	IsBusyAccounts bool
	IsBusyCreate   bool
	IsBusyLoad     bool
	IsBusyLock     bool
	IsBusyUnlock   bool

	IsModalAccountsOpen bool
	IsModalCreateOpen   bool
	IsModalLockOpen     bool
	IsModalUnlockOpen   bool

	VaultName           string
	VaultNameError      error
	VaultDescription    string
	VaultPassword       string
	VaultPasswordHint   string
	VaultPasswordRepeat string
}

func initialState() State {
	return State{
		Vaults:           []models.Vault{},
		VaultNames:       map[string]struct{}{},
		SelectedAccounts: map[string]bool{},
		VaultNameError:   validation.ErrNoName,
	}
}

// VaultPasswordRepeatError is derived on every call from the two password fields.
func (s State) VaultPasswordRepeatError() error {
	return validation.ValidatePasswordRepeat(s.VaultPassword, s.VaultPasswordRepeat)
}

// IsBusy reports whether any lifecycle operation is in flight.
func (s State) IsBusy() bool {
	return s.IsBusyAccounts || s.IsBusyCreate || s.IsBusyLoad || s.IsBusyLock || s.IsBusyUnlock
}

// OpenVaults returns the names of the vaults currently open.
func (s State) OpenVaults() []string {
	names := make([]string, 0, len(s.Vaults))
	for _, v := range s.Vaults {
		if v.IsOpen {
			names = append(names, v.Name)
		}
	}
	return names
}

// selectName writes the name together with its validation error and the
// matching vault record.
func (s *State) selectName(name string) {
	s.VaultName = name
	s.VaultNameError = validation.ValidateName(name, s.VaultNames)
	s.SelectedVault = findVault(s.Vaults, name)
}

func findVault(vaults []models.Vault, name string) *models.Vault {
	for i := range vaults {
		if vaults[i].Name == name {
			v := vaults[i]
			return &v
		}
	}
	return nil
}
