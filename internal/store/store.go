// Package store provides the Account Store Adapter: persistent storage for
// accounts, deposits, and ledger transactions, backed by SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides persistent storage for the account and settlement core.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Store instance, creating the backing SQLite database if
// it does not already exist.
func New(cfg *Config) (*Store, error) {
	dataDir := expandPath(cfg.DataDir)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "accountcore.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer; settlement workers rely on the
	// disjoint shard partition for correctness, not on this pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection, for admin tooling and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		password_salt TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_date INTEGER NOT NULL,
		deposit_wallet_address TEXT NOT NULL,
		deposit_wallet_passphrase TEXT,
		deposit_wallet_private_key TEXT,
		deposit_wallet_public_key TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_deposit_address ON accounts(deposit_wallet_address);

	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		height INTEGER NOT NULL,
		created_date INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_account ON deposits(account_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_date INTEGER NOT NULL,
		settled INTEGER NOT NULL DEFAULT 0,
		settled_date INTEGER,
		balance TEXT,
		canceled INTEGER NOT NULL DEFAULT 0,
		settlement_shard_key TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_shard_key ON transactions(settlement_shard_key);
	CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_date, id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	return s.runMigrations()
}

// runMigrations runs schema migrations for existing databases. These are
// ALTER TABLE statements; errors are ignored since columns may already exist.
func (s *Store) runMigrations() error {
	migrations := []string{}

	for _, migration := range migrations {
		_, _ = s.db.Exec(migration)
	}

	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint
// violation, used to detect the idempotency-key races described in the
// deposit ingestor and the signup username/address collision probes.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
