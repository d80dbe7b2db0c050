// Package store - Transaction (ledger event) storage operations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transaction errors.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionType enumerates the kinds of ledger events the settlement
// engine folds into a balance.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionCredit     TransactionType = "credit"
	TransactionDebit      TransactionType = "debit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Transaction is a single ledger event against an account.
type Transaction struct {
	ID          string
	AccountID   string
	Type        TransactionType
	Amount      string // canonical decimal big-int string, always non-negative
	CreatedDate time.Time
	Settled     bool
	SettledDate *time.Time
	Balance     string // running balance after this transaction; meaningful only when Settled
	Canceled    bool

	// SettlementShardKey is present while this row is still "interesting"
	// to a settlement shard, and nil once Phase 3 has pruned it.
	SettlementShardKey *string
}

// CreateTransaction inserts a new, unsettled transaction row. This is the
// store-layer half of what the spec calls execTransaction: it is always
// born with Settled=false and CreatedDate=now; the caller supplies the
// account's shard key so every transaction is routed to settlement from
// the moment it exists (see the spec's shard-range note in §9).
func (s *Store) CreateTransaction(accountID string, txType TransactionType, amount string, shardKey string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newTransactionID()
	now := time.Now()

	_, err := s.db.Exec(`
		INSERT INTO transactions (
			id, account_id, type, amount, created_date, settled, settlement_shard_key
		) VALUES (?, ?, ?, ?, ?, 0, ?)
	`, id, accountID, txType, amount, now.UnixNano(), shardKey)

	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return &Transaction{
		ID:                 id,
		AccountID:          accountID,
		Type:               txType,
		Amount:             amount,
		CreatedDate:        now,
		Settled:            false,
		SettlementShardKey: &shardKey,
	}, nil
}

// CreateTransactionWithID inserts a new, unsettled transaction row using a
// caller-supplied id. Used by the deposit ingestor, which records the id on
// the Deposit row before the Transaction exists, and by its crash-recovery
// path, which must adopt a previously-minted transaction id rather than
// mint a fresh one.
func (s *Store) CreateTransactionWithID(id, accountID string, txType TransactionType, amount string, shardKey string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	_, err := s.db.Exec(`
		INSERT INTO transactions (
			id, account_id, type, amount, created_date, settled, settlement_shard_key
		) VALUES (?, ?, ?, ?, ?, 0, ?)
	`, id, accountID, txType, amount, now.UnixNano(), shardKey)

	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return &Transaction{
		ID:                 id,
		AccountID:          accountID,
		Type:               txType,
		Amount:             amount,
		CreatedDate:        now,
		Settled:            false,
		SettlementShardKey: &shardKey,
	}, nil
}

// GetTransaction retrieves a transaction by id.
func (s *Store) GetTransaction(id string) (*Transaction, error) {
	return s.scanTransaction(s.db.QueryRow(`
		SELECT id, account_id, type, amount, created_date, settled,
			settled_date, balance, canceled, settlement_shard_key
		FROM transactions WHERE id = ?
	`, id))
}

// UpdateTransactionSettlement applies the explicit field set the settlement
// fold produces for one transaction: settled, settledDate, balance, and
// canceled. This is the corrected form of the mutation the spec's source
// described as accepting a {id, txnData} pair that was never actually
// populated (see DESIGN.md) — the fields are sent explicitly instead.
func (s *Store) UpdateTransactionSettlement(id string, settledDate time.Time, balance string, canceled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canceledInt := 0
	if canceled {
		canceledInt = 1
	}

	result, err := s.db.Exec(`
		UPDATE transactions SET settled = 1, settled_date = ?, balance = ?, canceled = ?
		WHERE id = ?
	`, settledDate.Unix(), balance, canceledInt, id)

	if err != nil {
		return fmt.Errorf("failed to update transaction settlement: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

// SettleTransaction is the single-transaction administrative settle
// described in the spec: a direct update of settled/settledDate that does
// not compute a balance and does not participate in the fold. Over RPC it
// is reachable only through the settlement_settleOne method, which is
// registered alongside the other methods with no separate access control.
func (s *Store) SettleTransaction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE transactions SET settled = 1, settled_date = ? WHERE id = ?
	`, time.Now().Unix(), id)

	if err != nil {
		return fmt.Errorf("failed to settle transaction: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

// ClearSettlementShardKey is the field-scoped delete Phase 3 issues to drop
// a transaction's settlement_shard_key once it is no longer the latest
// settled row for its account.
func (s *Store) ClearSettlementShardKey(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE transactions SET settlement_shard_key = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to clear settlement shard key: %w", err)
	}
	return nil
}

// TransactionsInShardKeyRange range-scans transactions whose
// settlement_shard_key falls in [start, end), ordered by created_date
// ascending with an id tiebreak for determinism — the settlement engine's
// Phase 1 gather.
func (s *Store) TransactionsInShardKeyRange(start, end string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, account_id, type, amount, created_date, settled,
			settled_date, balance, canceled, settlement_shard_key
		FROM transactions
		WHERE settlement_shard_key >= ? AND settlement_shard_key < ?
		ORDER BY created_date ASC, id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to scan shard range: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) scanTransaction(row *sql.Row) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t Transaction
	var createdDate int64
	var settled int
	var settledDate sql.NullInt64
	var balance sql.NullString
	var canceled int
	var shardKey sql.NullString

	err := row.Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Amount, &createdDate, &settled,
		&settledDate, &balance, &canceled, &shardKey,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	populateTransactionFields(&t, createdDate, settled, settledDate, balance, canceled, shardKey)
	return &t, nil
}

func scanTransactionRows(rows *sql.Rows) (*Transaction, error) {
	var t Transaction
	var createdDate int64
	var settled int
	var settledDate sql.NullInt64
	var balance sql.NullString
	var canceled int
	var shardKey sql.NullString

	err := rows.Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Amount, &createdDate, &settled,
		&settledDate, &balance, &canceled, &shardKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction row: %w", err)
	}

	populateTransactionFields(&t, createdDate, settled, settledDate, balance, canceled, shardKey)
	return &t, nil
}

func populateTransactionFields(t *Transaction, createdDate int64, settled int, settledDate sql.NullInt64, balance sql.NullString, canceled int, shardKey sql.NullString) {
	t.CreatedDate = time.Unix(0, createdDate)
	t.Settled = settled == 1
	t.Canceled = canceled == 1
	if settledDate.Valid {
		ts := time.Unix(settledDate.Int64, 0)
		t.SettledDate = &ts
	}
	if balance.Valid {
		t.Balance = balance.String
	}
	if shardKey.Valid {
		key := shardKey.String
		t.SettlementShardKey = &key
	}
}
