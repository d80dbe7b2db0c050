package ledger

import (
	"math/big"
	"time"

	"github.com/klingon-exchange/accountcore/internal/shard"
	"github.com/klingon-exchange/accountcore/internal/store"
	"github.com/klingon-exchange/accountcore/pkg/helpers"
	"github.com/klingon-exchange/accountcore/pkg/logging"
)

// TickResult summarizes one settlement tick, for logging and tests.
type TickResult struct {
	AccountsTouched int
	Settled         int
	Canceled        int
	Pruned          int
}

// Engine is a settlement worker pinned to one shard range. It owns the
// per-account fold, the overdraft rule, and shard-key pruning.
type Engine struct {
	store      *store.Store
	shardIndex int
	shardCount int
	log        *logging.Logger
}

// NewEngine constructs a settlement Engine for the given shard assignment.
func NewEngine(s *store.Store, shardIndex, shardCount int) *Engine {
	return &Engine{
		store:      s,
		shardIndex: shardIndex,
		shardCount: shardCount,
		log:        logging.GetDefault().Component("settlement"),
	}
}

// accountLedger is the per-account working set built by Phase 1.
type accountLedger struct {
	accountID   string
	balance     *big.Int
	lastSettled *store.Transaction
	unsettled   []*store.Transaction
}

// Tick runs one settlement pass over this worker's shard range. A gather
// failure (Phase 1) aborts the tick and returns an error; per-row failures
// in Phase 2/3 are logged and left for the next tick to retry.
func (e *Engine) Tick() (*TickResult, error) {
	start, end := shard.Range(e.shardIndex, e.shardCount)

	rows, err := e.store.TransactionsInShardKeyRange(start, end)
	if err != nil {
		return nil, err
	}

	ledgers := e.gather(rows)

	result := &TickResult{AccountsTouched: len(ledgers)}
	now := time.Now()

	for _, l := range ledgers {
		newlySettled := e.fold(l, now, result)
		e.prune(l, newlySettled, result)
	}

	return result, nil
}

// gather implements Phase 1: group the scanned rows by account and seed
// each account's starting balance from its latest already-settled row.
func (e *Engine) gather(rows []*store.Transaction) []*accountLedger {
	byAccount := make(map[string]*accountLedger)
	var order []string

	for _, tx := range rows {
		l, ok := byAccount[tx.AccountID]
		if !ok {
			l = &accountLedger{accountID: tx.AccountID, balance: big.NewInt(0)}
			byAccount[tx.AccountID] = l
			order = append(order, tx.AccountID)
		}

		if tx.Settled {
			// Invariant: at most one settled row per account retains a
			// shard key, so the latest one wins regardless of order.
			if l.lastSettled == nil || tx.CreatedDate.After(l.lastSettled.CreatedDate) {
				l.lastSettled = tx
			}
			continue
		}

		l.unsettled = append(l.unsettled, tx)
	}

	for _, l := range byAccount {
		if l.lastSettled != nil {
			if parsed, err := helpers.ParseLedgerAmount(l.lastSettled.Balance); err == nil {
				l.balance = parsed
			}
		}
	}

	out := make([]*accountLedger, 0, len(order))
	for _, id := range order {
		out = append(out, byAccount[id])
	}
	return out
}

// fold implements Phase 2 for one account: apply each unsettled transaction
// in order, enforcing the overdraft-cancellation rule, and persist the
// result. It returns the transactions it successfully settled, in the
// order they were applied.
func (e *Engine) fold(l *accountLedger, now time.Time, result *TickResult) []*store.Transaction {
	var newlySettled []*store.Transaction

	for _, tx := range l.unsettled {
		amount, err := helpers.ParseLedgerAmount(tx.Amount)
		if err != nil {
			e.log.Error("transaction has unparseable amount, skipping", "transactionId", tx.ID, "amount", tx.Amount)
			continue
		}

		canceled := false
		switch tx.Type {
		case store.TransactionDeposit, store.TransactionCredit:
			l.balance = new(big.Int).Add(l.balance, amount)
		case store.TransactionDebit, store.TransactionWithdrawal:
			next := new(big.Int).Sub(l.balance, amount)
			if next.Sign() >= 0 {
				l.balance = next
			} else {
				canceled = true
			}
		}

		balanceStr := helpers.FormatLedgerAmount(l.balance)
		if err := e.store.UpdateTransactionSettlement(tx.ID, now, balanceStr, canceled); err != nil {
			e.log.Error("failed to settle transaction, leaving unsettled for next tick", "transactionId", tx.ID, "err", err)
			continue
		}

		tx.Settled = true
		tx.Canceled = canceled
		tx.Balance = balanceStr
		newlySettled = append(newlySettled, tx)

		result.Settled++
		if canceled {
			result.Canceled++
		}
	}

	return newlySettled
}

// prune implements Phase 3: of {lastSettled} ∪ newlySettled, every row but
// the newest keeps the shard key cleared so the next gather stays cheap.
func (e *Engine) prune(l *accountLedger, newlySettled []*store.Transaction, result *TickResult) {
	candidates := make([]*store.Transaction, 0, len(newlySettled)+1)
	if l.lastSettled != nil {
		candidates = append(candidates, l.lastSettled)
	}
	candidates = append(candidates, newlySettled...)

	if len(candidates) <= 1 {
		return
	}

	for _, tx := range candidates[:len(candidates)-1] {
		if tx.SettlementShardKey == nil {
			continue
		}
		if err := e.store.ClearSettlementShardKey(tx.ID); err != nil {
			e.log.Error("failed to prune settlement shard key", "transactionId", tx.ID, "err", err)
			continue
		}
		result.Pruned++
	}
}
