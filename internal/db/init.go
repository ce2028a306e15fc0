package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS vaults (
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    lower_name TEXT NOT NULL,
    password_hash BYTEA NOT NULL,
    meta JSONB,
    opened_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (owner, lower_name)
);

CREATE TABLE IF NOT EXISTS vault_accounts (
    owner TEXT NOT NULL,
    address TEXT NOT NULL,
    vault_lower_name TEXT NOT NULL,
    PRIMARY KEY (owner, address),
    FOREIGN KEY (owner, vault_lower_name) REFERENCES vaults(owner, lower_name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS vaults_opened_at_idx ON vaults (opened_at) WHERE opened_at IS NOT NULL;
`

// InitPostgres connects to dsn and creates the vault tables if needed.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := prepare(db); err != nil {
		return nil, err
	}
	return db, nil
}

// prepare checks the connection and applies the schema. db is closed when
// either step fails.
func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}
