// Package repository provides vault persistence backed by PostgreSQL or a
// local Bolt file.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/VaultKeeper/internal/models"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresVaultRepository stores vaults and account assignments in PostgreSQL.
type PostgresVaultRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresVaultRepository creates a repository on an initialised database.
func NewPostgresVaultRepository(db *sql.DB) *PostgresVaultRepository {
	return &PostgresVaultRepository{DB: db}
}

func (r *PostgresVaultRepository) ListVaults(ctx context.Context, owner string) ([]string, error) {
	return r.names(ctx, `
		SELECT name FROM vaults WHERE owner = $1 ORDER BY created_at, lower_name
	`, owner)
}

func (r *PostgresVaultRepository) ListOpenedVaults(ctx context.Context, owner string) ([]string, error) {
	return r.names(ctx, `
		SELECT name FROM vaults WHERE owner = $1 AND opened_at IS NOT NULL ORDER BY created_at, lower_name
	`, owner)
}

func (r *PostgresVaultRepository) names(ctx context.Context, query, owner string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	return names, nil
}

// GetVault looks a vault up case-insensitively. It returns
// models.ErrVaultNotFound when there is none.
func (r *PostgresVaultRepository) GetVault(ctx context.Context, owner, name string) (*models.StoredVault, error) {
	var (
		v        models.StoredVault
		meta     []byte
		openedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT name, password_hash, meta, opened_at, created_at FROM vaults
		WHERE owner = $1 AND lower_name = $2
	`, owner, strings.ToLower(name)).Scan(&v.Name, &v.PasswordHash, &meta, &openedAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrVaultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", err)
	}

	if meta != nil {
		v.Meta = &models.VaultMeta{}
		if err := json.Unmarshal(meta, v.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	if openedAt.Valid {
		v.OpenedAt = &openedAt.Time
	}
	return &v, nil
}

// CreateVault inserts a closed vault. It returns models.ErrVaultExists when
// the name is taken in any letter case.
func (r *PostgresVaultRepository) CreateVault(ctx context.Context, owner, name string, passwordHash []byte) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO vaults (owner, name, lower_name, password_hash) VALUES ($1, $2, $3, $4)
	`, owner, name, strings.ToLower(name), passwordHash)
	if isPQCode(err, pqUniqueViolation) {
		return models.ErrVaultExists
	}
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}
	return nil
}

func (r *PostgresVaultRepository) SetVaultMeta(ctx context.Context, owner, name string, meta models.VaultMeta) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE vaults SET meta = $3 WHERE owner = $1 AND lower_name = $2
	`, owner, strings.ToLower(name), encoded)
	return affectedOne(res, err, "set vault meta")
}

// SetVaultOpen stamps the vault as opened now, or clears the stamp.
func (r *PostgresVaultRepository) SetVaultOpen(ctx context.Context, owner, name string, open bool) error {
	query := `UPDATE vaults SET opened_at = NULL WHERE owner = $1 AND lower_name = $2`
	if open {
		query = `UPDATE vaults SET opened_at = now() WHERE owner = $1 AND lower_name = $2`
	}
	res, err := r.DB.ExecContext(ctx, query, owner, strings.ToLower(name))
	return affectedOne(res, err, "set vault open")
}

// SetAccountVault assigns address to the named vault. An empty name removes
// the assignment.
func (r *PostgresVaultRepository) SetAccountVault(ctx context.Context, owner, address, name string) error {
	if name == "" {
		_, err := r.DB.ExecContext(ctx, `
			DELETE FROM vault_accounts WHERE owner = $1 AND address = $2
		`, owner, address)
		if err != nil {
			return fmt.Errorf("detach account: %w", err)
		}
		return nil
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO vault_accounts (owner, address, vault_lower_name) VALUES ($1, $2, $3)
		ON CONFLICT (owner, address) DO UPDATE SET vault_lower_name = EXCLUDED.vault_lower_name
	`, owner, address, strings.ToLower(name))
	if isPQCode(err, pqForeignKeyViolation) {
		return models.ErrVaultNotFound
	}
	if err != nil {
		return fmt.Errorf("attach account: %w", err)
	}
	return nil
}

// VaultAccounts lists the addresses assigned to any of the named vaults.
func (r *PostgresVaultRepository) VaultAccounts(ctx context.Context, owner string, names []string) (map[string]string, error) {
	lower := make([]string, len(names))
	for i, n := range names {
		lower[i] = strings.ToLower(n)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT a.address, v.name FROM vault_accounts a
		JOIN vaults v ON v.owner = a.owner AND v.lower_name = a.vault_lower_name
		WHERE a.owner = $1 AND a.vault_lower_name = ANY($2)
	`, owner, pq.Array(lower))
	if err != nil {
		return nil, fmt.Errorf("vault accounts: %w", err)
	}
	defer rows.Close()

	accounts := map[string]string{}
	for rows.Next() {
		var address, vault string
		if err := rows.Scan(&address, &vault); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		accounts[address] = vault
	}
	return accounts, rows.Err()
}

// CloseIdleVaults closes every vault, of any owner, opened before cutoff.
func (r *PostgresVaultRepository) CloseIdleVaults(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE vaults SET opened_at = NULL WHERE opened_at IS NOT NULL AND opened_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("close idle vaults: %w", err)
	}
	return res.RowsAffected()
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return models.ErrVaultNotFound
	}
	return nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
