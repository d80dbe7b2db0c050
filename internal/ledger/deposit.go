// Package ledger implements the deposit ingestor and settlement engine:
// the two halves of the core that turn observed chain activity into
// settled account balances.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klingon-exchange/accountcore/internal/shard"
	"github.com/klingon-exchange/accountcore/internal/store"
	"github.com/klingon-exchange/accountcore/pkg/helpers"
)

// ErrDepositIngestFatal is raised when a deposit insert failed and the
// presumed-colliding row could not be read back either.
var ErrDepositIngestFatal = errors.New("deposit ingest fatal")

// BlockchainTransaction is the external chain observer's event shape.
type BlockchainTransaction struct {
	ID       string
	SenderID string
	Height   int64
	Amount   string // decimal integer string
}

// IngestResult pairs the Deposit and Transaction rows materialized (or
// re-observed) for one BlockchainTransaction. Both fields are nil when the
// transaction's sender did not match any known deposit wallet.
type IngestResult struct {
	Deposit     *store.Deposit
	Transaction *store.Transaction
}

// Ingestor idempotently pairs chain deposits with internal ledger rows.
type Ingestor struct {
	store *store.Store
}

// NewIngestor constructs a deposit Ingestor.
func NewIngestor(s *store.Store) *Ingestor {
	return &Ingestor{store: s}
}

// Ingest materializes b against the account owning its deposit address. It
// is exactly-once: replaying the same b.ID returns the same (Deposit,
// Transaction) pair every time.
func (ing *Ingestor) Ingest(b BlockchainTransaction) (*IngestResult, error) {
	account, err := ing.store.GetAccountByDepositAddress(b.SenderID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return &IngestResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up deposit account: %w", err)
	}

	amount, err := helpers.ParseLedgerAmount(b.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid deposit amount: %w", err)
	}
	canonicalAmount := helpers.FormatLedgerAmount(amount)

	transactionID := uuid.NewString()

	deposit := &store.Deposit{
		ID:            b.ID,
		AccountID:     account.ID,
		TransactionID: transactionID,
		Height:        uint64(b.Height),
		CreatedDate:   time.Now(),
	}

	err = ing.store.CreateDeposit(deposit)
	if err == nil {
		tx, err := ing.store.CreateTransactionWithID(transactionID, account.ID, store.TransactionDeposit, canonicalAmount, shard.Key(account.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to create deposit transaction: %w", err)
		}
		return &IngestResult{Deposit: deposit, Transaction: tx}, nil
	}

	if !errors.Is(err, store.ErrDepositAlreadyExists) {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	existingDeposit, getErr := ing.store.GetDeposit(b.ID)
	if getErr != nil {
		return nil, fmt.Errorf("%w: insert failed (%v) and existing deposit could not be read (%v)", ErrDepositIngestFatal, err, getErr)
	}

	existingTx, txErr := ing.store.GetTransaction(existingDeposit.TransactionID)
	if txErr == nil {
		return &IngestResult{Deposit: existingDeposit, Transaction: existingTx}, nil
	}
	if !errors.Is(txErr, store.ErrTransactionNotFound) {
		return nil, fmt.Errorf("failed to read existing deposit's transaction: %w", txErr)
	}

	// Dangling Deposit from a past crash between the Deposit insert and the
	// Transaction insert: adopt the previously-minted transaction id.
	repairedTx, err := ing.store.CreateTransactionWithID(existingDeposit.TransactionID, existingDeposit.AccountID, store.TransactionDeposit, canonicalAmount, shard.Key(existingDeposit.AccountID))
	if err != nil {
		return nil, fmt.Errorf("failed to repair dangling deposit: %w", err)
	}
	return &IngestResult{Deposit: existingDeposit, Transaction: repairedTx}, nil
}
