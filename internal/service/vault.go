// Package service implements the vault backend behind the RPC endpoint,
// delegating persistence to a VaultRepository.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/validation"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// VaultRepository defines the persistence operations required by
// VaultService. Names are matched case-insensitively. Lookups of unknown
// vaults return models.ErrVaultNotFound.
type VaultRepository interface {
	ListVaults(ctx context.Context, owner string) ([]string, error)
	ListOpenedVaults(ctx context.Context, owner string) ([]string, error)
	GetVault(ctx context.Context, owner, name string) (*models.StoredVault, error)
	// CreateVault returns models.ErrVaultExists when the name is taken.
	CreateVault(ctx context.Context, owner, name string, passwordHash []byte) error
	SetVaultMeta(ctx context.Context, owner, name string, meta models.VaultMeta) error
	SetVaultOpen(ctx context.Context, owner, name string, open bool) error
	// SetAccountVault detaches address when name is empty.
	SetAccountVault(ctx context.Context, owner, address, name string) error
	VaultAccounts(ctx context.Context, owner string, names []string) (map[string]string, error)
}

// VaultService implements the vault operations for an authenticated owner.
type VaultService struct {
	repo     VaultRepository
	log      *zap.Logger
	hashCost int
}

// Option configures a VaultService.
type Option func(*VaultService)

// WithHashCost sets the bcrypt cost used for vault passwords.
func WithHashCost(cost int) Option {
	return func(s *VaultService) { s.hashCost = cost }
}

// NewVaultService constructs a VaultService on top of repo.
func NewVaultService(repo VaultRepository, log *zap.Logger, opts ...Option) *VaultService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &VaultService{repo: repo, log: log, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VaultService) ListVaults(ctx context.Context, owner string) ([]string, error) {
	return s.repo.ListVaults(ctx, owner)
}

func (s *VaultService) ListOpenedVaults(ctx context.Context, owner string) ([]string, error) {
	return s.repo.ListOpenedVaults(ctx, owner)
}

// GetVaultMeta returns models.ErrMetaNotSet until metadata has been stored.
func (s *VaultService) GetVaultMeta(ctx context.Context, owner, name string) (models.VaultMeta, error) {
	v, err := s.repo.GetVault(ctx, owner, name)
	if err != nil {
		return models.VaultMeta{}, err
	}
	if v.Meta == nil {
		return models.VaultMeta{}, models.ErrMetaNotSet
	}
	return *v.Meta, nil
}

// NewVault creates a vault protected by password and leaves it open.
func (s *VaultService) NewVault(ctx context.Context, owner, name, password string) error {
	names, err := s.repo.ListVaults(ctx, owner)
	if err != nil {
		return err
	}
	if err := validation.ValidateName(name, validation.LowerNames(names)); err != nil {
		if errors.Is(err, validation.ErrDuplicateName) {
			return models.ErrVaultExists
		}
		return fmt.Errorf("%w: %w", models.ErrInvalidName, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.CreateVault(ctx, owner, name, hash); err != nil {
		return err
	}
	if err := s.repo.SetVaultOpen(ctx, owner, name, true); err != nil {
		return err
	}

	s.log.Info("vault created", zap.String("owner", owner), zap.String("vault", name))
	return nil
}

func (s *VaultService) SetVaultMeta(ctx context.Context, owner, name string, meta models.VaultMeta) error {
	return s.repo.SetVaultMeta(ctx, owner, name, meta)
}

// OpenVault returns models.ErrWrongPassword when password does not match.
func (s *VaultService) OpenVault(ctx context.Context, owner, name, password string) error {
	v, err := s.repo.GetVault(ctx, owner, name)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(v.PasswordHash, []byte(password)); err != nil {
		s.log.Warn("vault password mismatch", zap.String("owner", owner), zap.String("vault", v.Name))
		return models.ErrWrongPassword
	}
	return s.repo.SetVaultOpen(ctx, owner, v.Name, true)
}

func (s *VaultService) CloseVault(ctx context.Context, owner, name string) error {
	v, err := s.repo.GetVault(ctx, owner, name)
	if err != nil {
		return err
	}
	return s.repo.SetVaultOpen(ctx, owner, v.Name, false)
}

// ChangeVault moves address into the named vault. An empty name takes the
// account out of its vault. The address is stored in checksum form.
func (s *VaultService) ChangeVault(ctx context.Context, owner, address, name string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", models.ErrInvalidAddress, address)
	}
	checksummed := common.HexToAddress(address).Hex()

	if name != "" {
		v, err := s.repo.GetVault(ctx, owner, name)
		if err != nil {
			return err
		}
		name = v.Name
	}
	return s.repo.SetAccountVault(ctx, owner, checksummed, name)
}

// VaultAccounts maps each address assigned to the named vault to the
// vault's display name.
func (s *VaultService) VaultAccounts(ctx context.Context, owner, name string) (map[string]string, error) {
	if _, err := s.repo.GetVault(ctx, owner, name); err != nil {
		return nil, err
	}
	return s.repo.VaultAccounts(ctx, owner, []string{name})
}
