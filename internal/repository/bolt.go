package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/VaultKeeper/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	vaultsBucket   = []byte("vaults")
	accountsBucket = []byte("accounts")
)

// BoltVaultRepository stores vaults in a single Bolt file. Each root bucket
// holds one nested bucket per owner, keyed by lower-cased vault name or by
// account address.
type BoltVaultRepository struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltVaultRepository opens or creates the Bolt file at path.
func NewBoltVaultRepository(path string) (*BoltVaultRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{vaultsBucket, accountsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltVaultRepository{db: db, now: time.Now}, nil
}

func (r *BoltVaultRepository) Close() error {
	return r.db.Close()
}

func (r *BoltVaultRepository) ListVaults(ctx context.Context, owner string) ([]string, error) {
	return r.list(owner, func(*models.StoredVault) bool { return true })
}

func (r *BoltVaultRepository) ListOpenedVaults(ctx context.Context, owner string) ([]string, error) {
	return r.list(owner, func(v *models.StoredVault) bool { return v.OpenedAt != nil })
}

func (r *BoltVaultRepository) list(owner string, keep func(*models.StoredVault) bool) ([]string, error) {
	var vaults []models.StoredVault
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(vaultsBucket).Bucket([]byte(owner))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, data []byte) error {
			var v models.StoredVault
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			if keep(&v) {
				vaults = append(vaults, v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	slices.SortStableFunc(vaults, func(a, b models.StoredVault) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	names := make([]string, len(vaults))
	for i, v := range vaults {
		names[i] = v.Name
	}
	return names, nil
}

func (r *BoltVaultRepository) GetVault(ctx context.Context, owner, name string) (*models.StoredVault, error) {
	var v *models.StoredVault
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		v, err = getVault(tx, owner, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *BoltVaultRepository) CreateVault(ctx context.Context, owner, name string, passwordHash []byte) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(vaultsBucket).CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return fmt.Errorf("create vault: %w", err)
		}
		key := []byte(strings.ToLower(name))
		if b.Get(key) != nil {
			return models.ErrVaultExists
		}
		return putVault(b, &models.StoredVault{
			Name:         name,
			PasswordHash: passwordHash,
			CreatedAt:    r.now(),
		})
	})
}

func (r *BoltVaultRepository) SetVaultMeta(ctx context.Context, owner, name string, meta models.VaultMeta) error {
	return r.modify(owner, name, func(v *models.StoredVault) {
		v.Meta = &meta
	})
}

func (r *BoltVaultRepository) SetVaultOpen(ctx context.Context, owner, name string, open bool) error {
	return r.modify(owner, name, func(v *models.StoredVault) {
		if !open {
			v.OpenedAt = nil
			return
		}
		now := r.now()
		v.OpenedAt = &now
	})
}

func (r *BoltVaultRepository) modify(owner, name string, fn func(*models.StoredVault)) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		v, err := getVault(tx, owner, name)
		if err != nil {
			return err
		}
		fn(v)
		return putVault(tx.Bucket(vaultsBucket).Bucket([]byte(owner)), v)
	})
}

func (r *BoltVaultRepository) SetAccountVault(ctx context.Context, owner, address, name string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(accountsBucket).CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return fmt.Errorf("account bucket: %w", err)
		}
		if name == "" {
			return b.Delete([]byte(address))
		}
		if _, err := getVault(tx, owner, name); err != nil {
			return err
		}
		return b.Put([]byte(address), []byte(strings.ToLower(name)))
	})
}

func (r *BoltVaultRepository) VaultAccounts(ctx context.Context, owner string, names []string) (map[string]string, error) {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = struct{}{}
	}

	accounts := map[string]string{}
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucket).Bucket([]byte(owner))
		if b == nil {
			return nil
		}
		return b.ForEach(func(address, lower []byte) error {
			if _, ok := wanted[string(lower)]; !ok {
				return nil
			}
			v, err := getVault(tx, owner, string(lower))
			if err != nil {
				return err
			}
			accounts[string(address)] = v.Name
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("vault accounts: %w", err)
	}
	return accounts, nil
}

// CloseIdleVaults closes every vault, of any owner, opened before cutoff.
func (r *BoltVaultRepository) CloseIdleVaults(ctx context.Context, cutoff time.Time) (int64, error) {
	var closed int64
	err := r.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(vaultsBucket)
		var owners [][]byte
		err := root.ForEach(func(owner, v []byte) error {
			if v == nil {
				owners = append(owners, owner)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// bolt forbids writes to a bucket while iterating it
		for _, owner := range owners {
			b := root.Bucket(owner)
			var idle []*models.StoredVault
			err := b.ForEach(func(_, data []byte) error {
				var sv models.StoredVault
				if err := json.Unmarshal(data, &sv); err != nil {
					return err
				}
				if sv.OpenedAt != nil && sv.OpenedAt.Before(cutoff) {
					idle = append(idle, &sv)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, sv := range idle {
				sv.OpenedAt = nil
				if err := putVault(b, sv); err != nil {
					return err
				}
				closed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("close idle vaults: %w", err)
	}
	return closed, nil
}

func getVault(tx *bolt.Tx, owner, name string) (*models.StoredVault, error) {
	b := tx.Bucket(vaultsBucket).Bucket([]byte(owner))
	if b == nil {
		return nil, models.ErrVaultNotFound
	}
	data := b.Get([]byte(strings.ToLower(name)))
	if data == nil {
		return nil, models.ErrVaultNotFound
	}
	var v models.StoredVault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	return &v, nil
}

func putVault(b *bolt.Bucket, v *models.StoredVault) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	return b.Put([]byte(strings.ToLower(v.Name)), data)
}
