package vaults

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/validation"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidForm is returned by CreateVault when the form has validation
// errors. It wraps the field errors.
var ErrInvalidForm = errors.New("vault form is invalid")

// LoadVaults refreshes the vault list from the backend. Metadata that cannot
// be fetched for a vault is treated as empty. Any other failure is logged and
// leaves the previous list in place. When loads overlap only the one started
// last applies its result, and IsBusyLoad stays set until all have settled.
func (s *Store) LoadVaults(ctx context.Context) {
	var seq uint64
	s.update(func(st *State) {
		s.loadSeq++
		seq = s.loadSeq
		s.loading++
		st.IsBusyLoad = true
	})

	list, err := s.fetchVaults(ctx)
	if err != nil {
		s.log.Warn("loadVaults", zap.Error(err))
	}

	var names []string
	for _, v := range list {
		names = append(names, v.Name)
	}
	index := validation.LowerNames(names)

	s.update(func(st *State) {
		s.loading--
		st.IsBusyLoad = s.loading > 0
		if err != nil {
			return
		}
		if seq != s.loadSeq {
			s.log.Debug("loadVaults: result superseded by a newer load")
			return
		}
		st.Vaults = list
		st.VaultNames = index
		st.selectName(st.VaultName)
	})
}

func (s *Store) fetchVaults(ctx context.Context) ([]models.Vault, error) {
	var all, opened []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if all, err = s.gw.ListVaults(gctx); err != nil {
			return fmt.Errorf("list vaults: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if opened, err = s.gw.ListOpenedVaults(gctx); err != nil {
			return fmt.Errorf("list opened vaults: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metas := make([]models.VaultMeta, len(all))
	var mg errgroup.Group
	mg.SetLimit(s.metaConcurrency)
	for i, name := range all {
		mg.Go(func() error {
			meta, err := s.gw.GetVaultMeta(ctx, name)
			if err != nil {
				// the backend fails until metadata has been set once
				s.log.Debug("vault metadata unavailable", zap.String("vault", name), zap.Error(err))
				return nil
			}
			metas[i] = meta
			return nil
		})
	}
	_ = mg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	isOpen := make(map[string]struct{}, len(opened))
	for _, name := range opened {
		isOpen[name] = struct{}{}
	}

	list := make([]models.Vault, len(all))
	for i, name := range all {
		_, open := isOpen[name]
		list[i] = models.Vault{Name: name, Meta: metas[i], IsOpen: open}
	}
	return list, nil
}

// CreateVault creates the vault described by the create form, stores its
// description and password hint, then reloads the list. It returns an error
// wrapping ErrInvalidForm, without contacting the backend, while the form
// has validation errors.
func (s *Store) CreateVault(ctx context.Context) error {
	st := s.Snapshot()
	if err := errors.Join(st.VaultNameError, st.VaultPasswordRepeatError()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}

	s.SetBusyCreate(true)
	defer s.SetBusyCreate(false)

	if err := s.gw.NewVault(ctx, st.VaultName, st.VaultPassword); err != nil {
		return s.fail("createVault", err)
	}
	meta := models.VaultMeta{
		Description:  st.VaultDescription,
		PasswordHint: st.VaultPasswordHint,
	}
	if err := s.gw.SetVaultMeta(ctx, st.VaultName, meta); err != nil {
		return s.fail("createVault", err)
	}

	s.LoadVaults(ctx)
	return nil
}

// OpenVault unlocks the selected vault with the form password.
func (s *Store) OpenVault(ctx context.Context) error {
	st := s.Snapshot()

	s.SetBusyUnlock(true)
	defer s.SetBusyUnlock(false)

	if err := s.gw.OpenVault(ctx, st.VaultName, st.VaultPassword); err != nil {
		return s.fail("openVault", err)
	}

	s.LoadVaults(ctx)
	return nil
}

// CloseVault locks the selected vault.
func (s *Store) CloseVault(ctx context.Context) error {
	st := s.Snapshot()

	s.SetBusyLock(true)
	defer s.SetBusyLock(false)

	if err := s.gw.CloseVault(ctx, st.VaultName); err != nil {
		return s.fail("closeVault", err)
	}

	s.LoadVaults(ctx)
	return nil
}

// MoveAccounts moves inAccounts into vaultName and outAccounts out of any
// vault. All changes are issued concurrently. The list is reloaded once they
// settle, even when some failed, and the failures are returned combined.
func (s *Store) MoveAccounts(ctx context.Context, vaultName string, inAccounts, outAccounts []string) error {
	s.SetBusyAccounts(true)
	defer s.SetBusyAccounts(false)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	change := func(address, target string) {
		g.Go(func() error {
			if err := s.gw.ChangeVault(ctx, address, target); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("change vault of %s: %w", address, err))
				mu.Unlock()
			}
			// keep going: every failure is collected in errs
			return nil
		})
	}
	for _, address := range inAccounts {
		change(address, vaultName)
	}
	for _, address := range outAccounts {
		change(address, "")
	}
	_ = g.Wait()

	s.LoadVaults(ctx)

	if errs != nil {
		return s.fail("moveAccounts", errs)
	}
	return nil
}

func (s *Store) fail(op string, err error) error {
	s.log.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
