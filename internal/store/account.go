// Package store - Account storage operations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Account errors.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrDepositAddressTaken = errors.New("deposit wallet address already taken")
)

// Account represents a custodial account row.
type Account struct {
	ID                      string
	Username                string
	Password                string // hex(SHA256(password || PasswordSalt))
	PasswordSalt            string // hex-encoded random bytes
	Active                  bool
	CreatedDate             time.Time
	DepositWalletAddress    string
	DepositWalletPassphrase string
	DepositWalletPrivateKey string
	DepositWalletPublicKey  string
}

// CreateAccount inserts a new account row. A collision on username or
// deposit wallet address surfaces as ErrUsernameTaken / ErrDepositAddressTaken
// so callers can resolve the race the signup uniqueness probe cannot fully
// close (see DESIGN.md's open-question resolution).
func (s *Store) CreateAccount(a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	if a.Active {
		active = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO accounts (
			id, username, password, password_salt, active, created_date,
			deposit_wallet_address, deposit_wallet_passphrase,
			deposit_wallet_private_key, deposit_wallet_public_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Username, a.Password, a.PasswordSalt, active, a.CreatedDate.Unix(),
		a.DepositWalletAddress, a.DepositWalletPassphrase,
		a.DepositWalletPrivateKey, a.DepositWalletPublicKey,
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			if existsErr := s.usernameExists(a.Username); existsErr {
				return ErrUsernameTaken
			}
			return ErrDepositAddressTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (s *Store) usernameExists(username string) bool {
	var id string
	err := s.db.QueryRow(`SELECT id FROM accounts WHERE username = ?`, username).Scan(&id)
	return err == nil
}

// GetAccount retrieves an account by id.
func (s *Store) GetAccount(id string) (*Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT id, username, password, password_salt, active, created_date,
			deposit_wallet_address, deposit_wallet_passphrase,
			deposit_wallet_private_key, deposit_wallet_public_key
		FROM accounts WHERE id = ?
	`, id))
}

// GetAccountByUsername looks up an account by its unique username.
func (s *Store) GetAccountByUsername(username string) (*Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT id, username, password, password_salt, active, created_date,
			deposit_wallet_address, deposit_wallet_passphrase,
			deposit_wallet_private_key, deposit_wallet_public_key
		FROM accounts WHERE username = ?
	`, username))
}

// GetAccountByDepositAddress looks up an account by its unique deposit
// wallet address — the index the deposit ingestor matches incoming
// BlockchainTransaction.senderId against.
func (s *Store) GetAccountByDepositAddress(address string) (*Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT id, username, password, password_salt, active, created_date,
			deposit_wallet_address, deposit_wallet_passphrase,
			deposit_wallet_private_key, deposit_wallet_public_key
		FROM accounts WHERE deposit_wallet_address = ?
	`, address))
}

// DeactivateAccount flips an account's active flag off. A deactivated
// account cannot log in but its ledger still settles.
func (s *Store) DeactivateAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`UPDATE accounts SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *Store) scanAccount(row *sql.Row) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Account
	var active int
	var createdDate int64

	err := row.Scan(
		&a.ID, &a.Username, &a.Password, &a.PasswordSalt, &active, &createdDate,
		&a.DepositWalletAddress, &a.DepositWalletPassphrase,
		&a.DepositWalletPrivateKey, &a.DepositWalletPublicKey,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	a.Active = active == 1
	a.CreatedDate = time.Unix(createdDate, 0)
	return &a, nil
}
