package vaults

import (
	"maps"
)

// SetVaultName sets the form name and, in the same write, its validation
// error and the matching vault record.
func (s *Store) SetVaultName(name string) {
	s.update(func(st *State) {
		st.selectName(name)
	})
}

// SetVaultDescription sets the create form description.
func (s *Store) SetVaultDescription(description string) {
	s.update(func(st *State) { st.VaultDescription = description })
}

// SetVaultPassword sets the form password used by create and unlock.
func (s *Store) SetVaultPassword(password string) {
	s.update(func(st *State) { st.VaultPassword = password })
}

// SetVaultPasswordHint sets the create form password hint.
func (s *Store) SetVaultPasswordHint(hint string) {
	s.update(func(st *State) { st.VaultPasswordHint = hint })
}

// SetVaultPasswordRepeat sets the create form confirmation password.
func (s *Store) SetVaultPasswordRepeat(password string) {
	s.update(func(st *State) { st.VaultPasswordRepeat = password })
}

// SetSelectedAccounts replaces the selection set. The map is copied so the
// caller keeps ownership of its argument.
func (s *Store) SetSelectedAccounts(selected map[string]bool) {
	next := maps.Clone(selected)
	if next == nil {
		next = map[string]bool{}
	}
	s.update(func(st *State) { st.SelectedAccounts = next })
}

// ToggleSelectedAccount flips address in a fresh copy of the selection set.
func (s *Store) ToggleSelectedAccount(address string) {
	s.update(func(st *State) {
		next := make(map[string]bool, len(st.SelectedAccounts)+1)
		maps.Copy(next, st.SelectedAccounts)
		next[address] = !st.SelectedAccounts[address]
		st.SelectedAccounts = next
	})
}

// ClearVaultFields resets the create form and the selected vault.
func (s *Store) ClearVaultFields() {
	s.update(clearVaultFields)
}

func clearVaultFields(st *State) {
	st.selectName("")
	st.VaultDescription = ""
	st.VaultPassword = ""
	st.VaultPasswordHint = ""
	st.VaultPasswordRepeat = ""
}

// The SetBusy* and SetModal*Open setters each flip a single flag of the
// published state.

func (s *Store) SetBusyAccounts(busy bool) {
	s.update(func(st *State) { st.IsBusyAccounts = busy })
}

func (s *Store) SetBusyCreate(busy bool) {
	s.update(func(st *State) { st.IsBusyCreate = busy })
}

func (s *Store) SetBusyLoad(busy bool) {
	s.update(func(st *State) { st.IsBusyLoad = busy })
}

func (s *Store) SetBusyLock(busy bool) {
	s.update(func(st *State) { st.IsBusyLock = busy })
}

func (s *Store) SetBusyUnlock(busy bool) {
	s.update(func(st *State) { st.IsBusyUnlock = busy })
}

func (s *Store) SetModalAccountsOpen(open bool) {
	s.update(func(st *State) { st.IsModalAccountsOpen = open })
}

func (s *Store) SetModalCreateOpen(open bool) {
	s.update(func(st *State) { st.IsModalCreateOpen = open })
}

func (s *Store) SetModalLockOpen(open bool) {
	s.update(func(st *State) { st.IsModalLockOpen = open })
}

func (s *Store) SetModalUnlockOpen(open bool) {
	s.update(func(st *State) { st.IsModalUnlockOpen = open })
}

// OpenAccountsModal selects the vault, empties the account selection and
// shows the accounts modal.
func (s *Store) OpenAccountsModal(name string) {
	s.update(func(st *State) {
		st.selectName(name)
		st.SelectedAccounts = map[string]bool{}
		st.IsModalAccountsOpen = true
	})
}

// OpenCreateModal resets the create form and shows the create modal.
func (s *Store) OpenCreateModal() {
	s.update(func(st *State) {
		clearVaultFields(st)
		st.IsModalCreateOpen = true
	})
}

// OpenLockModal selects the vault and shows the lock modal.
func (s *Store) OpenLockModal(name string) {
	s.update(func(st *State) {
		st.selectName(name)
		st.IsModalLockOpen = true
	})
}

// OpenUnlockModal selects the vault and shows the unlock modal with an
// empty password field.
func (s *Store) OpenUnlockModal(name string) {
	s.update(func(st *State) {
		st.selectName(name)
		st.VaultPassword = ""
		st.IsModalUnlockOpen = true
	})
}

// The Close*Modal actions hide their modal and leave the form and the
// selection as they are.

func (s *Store) CloseAccountsModal() { s.SetModalAccountsOpen(false) }

func (s *Store) CloseCreateModal() { s.SetModalCreateOpen(false) }

func (s *Store) CloseLockModal() { s.SetModalLockOpen(false) }

func (s *Store) CloseUnlockModal() { s.SetModalUnlockOpen(false) }
