package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/atinyakov/VaultKeeper/internal/service"
	"github.com/atinyakov/VaultKeeper/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockRepo struct {
	ListVaultsFunc       func(ctx context.Context, owner string) ([]string, error)
	ListOpenedVaultsFunc func(ctx context.Context, owner string) ([]string, error)
	GetVaultFunc         func(ctx context.Context, owner, name string) (*models.StoredVault, error)
	CreateVaultFunc      func(ctx context.Context, owner, name string, hash []byte) error
	SetVaultMetaFunc     func(ctx context.Context, owner, name string, meta models.VaultMeta) error
	SetVaultOpenFunc     func(ctx context.Context, owner, name string, open bool) error
	SetAccountVaultFunc  func(ctx context.Context, owner, address, name string) error
	VaultAccountsFunc    func(ctx context.Context, owner string, names []string) (map[string]string, error)
}

func (m *mockRepo) ListVaults(ctx context.Context, owner string) ([]string, error) {
	return m.ListVaultsFunc(ctx, owner)
}
func (m *mockRepo) ListOpenedVaults(ctx context.Context, owner string) ([]string, error) {
	return m.ListOpenedVaultsFunc(ctx, owner)
}
func (m *mockRepo) GetVault(ctx context.Context, owner, name string) (*models.StoredVault, error) {
	return m.GetVaultFunc(ctx, owner, name)
}
func (m *mockRepo) CreateVault(ctx context.Context, owner, name string, hash []byte) error {
	return m.CreateVaultFunc(ctx, owner, name, hash)
}
func (m *mockRepo) SetVaultMeta(ctx context.Context, owner, name string, meta models.VaultMeta) error {
	return m.SetVaultMetaFunc(ctx, owner, name, meta)
}
func (m *mockRepo) SetVaultOpen(ctx context.Context, owner, name string, open bool) error {
	return m.SetVaultOpenFunc(ctx, owner, name, open)
}
func (m *mockRepo) SetAccountVault(ctx context.Context, owner, address, name string) error {
	return m.SetAccountVaultFunc(ctx, owner, address, name)
}
func (m *mockRepo) VaultAccounts(ctx context.Context, owner string, names []string) (map[string]string, error) {
	return m.VaultAccountsFunc(ctx, owner, names)
}

func newService(repo service.VaultRepository) *service.VaultService {
	return service.NewVaultService(repo, nil, service.WithHashCost(bcrypt.MinCost))
}

func vaultWithPassword(t *testing.T, name, password string) *models.StoredVault {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.StoredVault{Name: name, PasswordHash: hash}
}

func TestGetVaultMeta(t *testing.T) {
	meta := models.VaultMeta{Description: "d"}
	tests := []struct {
		name    string
		vault   *models.StoredVault
		repoErr error
		want    models.VaultMeta
		wantErr error
	}{
		{"set", &models.StoredVault{Name: "Work", Meta: &meta}, nil, meta, nil},
		{"never set", &models.StoredVault{Name: "Work"}, nil, models.VaultMeta{}, models.ErrMetaNotSet},
		{"missing vault", nil, models.ErrVaultNotFound, models.VaultMeta{}, models.ErrVaultNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{
				GetVaultFunc: func(_ context.Context, owner, name string) (*models.StoredVault, error) {
					assert.Equal(t, "alice", owner)
					return tt.vault, tt.repoErr
				},
			}
			got, err := newService(repo).GetVaultMeta(context.Background(), "alice", "Work")
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewVault(t *testing.T) {
	var (
		created []byte
		opened  string
	)
	repo := &mockRepo{
		ListVaultsFunc: func(context.Context, string) ([]string, error) {
			return []string{"Personal"}, nil
		},
		CreateVaultFunc: func(_ context.Context, owner, name string, hash []byte) error {
			assert.Equal(t, "Work", name)
			created = hash
			return nil
		},
		SetVaultOpenFunc: func(_ context.Context, _, name string, open bool) error {
			assert.True(t, open)
			opened = name
			return nil
		},
	}

	err := newService(repo).NewVault(context.Background(), "alice", "Work", "secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(created, []byte("secret")), "password is stored hashed")
	assert.NotEqual(t, []byte("secret"), created)
	assert.Equal(t, "Work", opened)
}

func TestNewVault_Validation(t *testing.T) {
	repo := &mockRepo{
		ListVaultsFunc: func(context.Context, string) ([]string, error) {
			return []string{"Work"}, nil
		},
		CreateVaultFunc: func(context.Context, string, string, []byte) error {
			t.Fatal("CreateVault must not be called")
			return nil
		},
	}
	svc := newService(repo)

	err := svc.NewVault(context.Background(), "alice", "work", "pw")
	assert.ErrorIs(t, err, models.ErrVaultExists)

	err = svc.NewVault(context.Background(), "alice", "  ", "pw")
	assert.ErrorIs(t, err, models.ErrInvalidName)
	assert.ErrorIs(t, err, validation.ErrNoName)
}

func TestNewVault_RepoErrors(t *testing.T) {
	listErr := errors.New("list failed")
	repo := &mockRepo{
		ListVaultsFunc: func(context.Context, string) ([]string, error) { return nil, listErr },
	}
	assert.ErrorIs(t, newService(repo).NewVault(context.Background(), "alice", "Work", "pw"), listErr)

	repo = &mockRepo{
		ListVaultsFunc:  func(context.Context, string) ([]string, error) { return nil, nil },
		CreateVaultFunc: func(context.Context, string, string, []byte) error { return models.ErrVaultExists },
	}
	assert.ErrorIs(t, newService(repo).NewVault(context.Background(), "alice", "Work", "pw"), models.ErrVaultExists)
}

func TestOpenVault(t *testing.T) {
	stored := vaultWithPassword(t, "Work", "secret")
	var openCalls []bool
	repo := &mockRepo{
		GetVaultFunc: func(context.Context, string, string) (*models.StoredVault, error) {
			return stored, nil
		},
		SetVaultOpenFunc: func(_ context.Context, _, name string, open bool) error {
			assert.Equal(t, "Work", name)
			openCalls = append(openCalls, open)
			return nil
		},
	}
	svc := newService(repo)

	assert.ErrorIs(t, svc.OpenVault(context.Background(), "alice", "work", "wrong"), models.ErrWrongPassword)
	assert.Empty(t, openCalls)

	require.NoError(t, svc.OpenVault(context.Background(), "alice", "work", "secret"))
	assert.Equal(t, []bool{true}, openCalls)
}

func TestCloseVault(t *testing.T) {
	repo := &mockRepo{
		GetVaultFunc: func(_ context.Context, _, name string) (*models.StoredVault, error) {
			if name == "missing" {
				return nil, models.ErrVaultNotFound
			}
			return &models.StoredVault{Name: "Work"}, nil
		},
		SetVaultOpenFunc: func(_ context.Context, _, name string, open bool) error {
			assert.False(t, open)
			return nil
		},
	}
	svc := newService(repo)

	assert.NoError(t, svc.CloseVault(context.Background(), "alice", "work"))
	assert.ErrorIs(t, svc.CloseVault(context.Background(), "alice", "missing"), models.ErrVaultNotFound)
}

func TestChangeVault(t *testing.T) {
	const (
		lower    = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
		checksum = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	)

	tests := []struct {
		name        string
		address     string
		vault       string
		wantErr     error
		wantAddress string
		wantVault   string
	}{
		{"attach", lower, "work", nil, checksum, "Work"},
		{"detach", checksum, "", nil, checksum, ""},
		{"bad address", "0x123", "work", models.ErrInvalidAddress, "", ""},
		{"missing vault", lower, "missing", models.ErrVaultNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAddress, gotVault string
			repo := &mockRepo{
				GetVaultFunc: func(_ context.Context, _, name string) (*models.StoredVault, error) {
					if name == "missing" {
						return nil, models.ErrVaultNotFound
					}
					return &models.StoredVault{Name: "Work"}, nil
				},
				SetAccountVaultFunc: func(_ context.Context, _, address, name string) error {
					gotAddress, gotVault = address, name
					return nil
				},
			}

			err := newService(repo).ChangeVault(context.Background(), "alice", tt.address, tt.vault)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, gotAddress, "repository must not be touched")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddress, gotAddress)
			assert.Equal(t, tt.wantVault, gotVault)
		})
	}
}

func TestVaultAccounts(t *testing.T) {
	repo := &mockRepo{
		GetVaultFunc: func(_ context.Context, _, name string) (*models.StoredVault, error) {
			return &models.StoredVault{Name: "Work"}, nil
		},
		VaultAccountsFunc: func(_ context.Context, _ string, names []string) (map[string]string, error) {
			assert.Equal(t, []string{"work"}, names)
			return map[string]string{"0x1": "Work"}, nil
		},
	}

	got, err := newService(repo).VaultAccounts(context.Background(), "alice", "work")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0x1": "Work"}, got)
}

func TestListPassThrough(t *testing.T) {
	repo := &mockRepo{
		ListVaultsFunc:       func(context.Context, string) ([]string, error) { return []string{"a", "b"}, nil },
		ListOpenedVaultsFunc: func(context.Context, string) ([]string, error) { return []string{"b"}, nil },
		SetVaultMetaFunc: func(_ context.Context, _, name string, meta models.VaultMeta) error {
			assert.Equal(t, "a", name)
			assert.Equal(t, "d", meta.Description)
			return nil
		},
	}
	svc := newService(repo)

	all, err := svc.ListVaults(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, all)

	opened, err := svc.ListOpenedVaults(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, opened)

	assert.NoError(t, svc.SetVaultMeta(context.Background(), "alice", "a", models.VaultMeta{Description: "d"}))
}
