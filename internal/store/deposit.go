// Package store - Deposit storage operations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Deposit errors.
var (
	ErrDepositNotFound      = errors.New("deposit not found")
	ErrDepositAlreadyExists = errors.New("deposit already exists")
)

// Deposit pairs an observed BlockchainTransaction with the internal
// Transaction it materialized. Deposit.ID equals the originating
// blockchain transaction id — the ingestor's idempotency key.
type Deposit struct {
	ID            string
	AccountID     string
	TransactionID string
	Height        uint64
	CreatedDate   time.Time
}

// CreateDeposit inserts a new deposit row. A unique-constraint violation on
// id means this BlockchainTransaction has been seen before; it surfaces as
// ErrDepositAlreadyExists so the ingestor can fall back to its recovery path.
func (s *Store) CreateDeposit(d *Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO deposits (id, account_id, transaction_id, height, created_date)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.AccountID, d.TransactionID, d.Height, d.CreatedDate.Unix())

	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDepositAlreadyExists
		}
		return fmt.Errorf("failed to create deposit: %w", err)
	}

	return nil
}

// GetDeposit retrieves a deposit by id.
func (s *Store) GetDeposit(id string) (*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d Deposit
	var createdDate int64

	err := s.db.QueryRow(`
		SELECT id, account_id, transaction_id, height, created_date
		FROM deposits WHERE id = ?
	`, id).Scan(&d.ID, &d.AccountID, &d.TransactionID, &d.Height, &createdDate)

	if err == sql.ErrNoRows {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	d.CreatedDate = time.Unix(createdDate, 0)
	return &d, nil
}
