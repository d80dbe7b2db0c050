package ledger

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/accountcore/internal/shard"
	"github.com/klingon-exchange/accountcore/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "accountcore-ledger-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := store.New(&store.Config{DataDir: tmpDir})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateAccount(t *testing.T, s *store.Store, id, address string) *store.Account {
	t.Helper()
	a := &store.Account{
		ID: id, Username: id, Password: "x", PasswordSalt: "y",
		Active: true, CreatedDate: time.Now(), DepositWalletAddress: address,
	}
	require.NoError(t, s.CreateAccount(a))
	return a
}

func singleShardEngine(s *store.Store) *Engine {
	return NewEngine(s, 0, 1)
}

func TestScenario1HappyPathDepositAndSettle(t *testing.T) {
	s := newTestStore(t)
	account := mustCreateAccount(t, s, "A", "addr-A")

	ing := NewIngestor(s)
	result, err := ing.Ingest(BlockchainTransaction{ID: "tx1", SenderID: account.DepositWalletAddress, Height: 100, Amount: "500"})
	require.NoError(t, err)
	require.NotNil(t, result.Deposit)
	require.Equal(t, "tx1", result.Deposit.ID)

	_, err = singleShardEngine(s).Tick()
	require.NoError(t, err)

	tx, err := s.GetTransaction(result.Transaction.ID)
	require.NoError(t, err)
	require.Equal(t, store.TransactionDeposit, tx.Type)
	require.Equal(t, "500", tx.Amount)
	require.True(t, tx.Settled)
	require.False(t, tx.Canceled)
	require.Equal(t, "500", tx.Balance)
	require.NotNil(t, tx.SettlementShardKey, "expected the single settled transaction to retain its shard key")
}

func TestScenario2OverdraftCancellation(t *testing.T) {
	s := newTestStore(t)
	account := mustCreateAccount(t, s, "A", "addr-A")
	ing := NewIngestor(s)
	engine := singleShardEngine(s)

	_, err := ing.Ingest(BlockchainTransaction{ID: "tx1", SenderID: account.DepositWalletAddress, Height: 100, Amount: "500"})
	require.NoError(t, err)
	_, err = engine.Tick()
	require.NoError(t, err)

	withdrawal, err := s.CreateTransaction(account.ID, store.TransactionWithdrawal, "700", shard.Key(account.ID))
	require.NoError(t, err)
	credit, err := s.CreateTransaction(account.ID, store.TransactionCredit, "200", shard.Key(account.ID))
	require.NoError(t, err)

	_, err = engine.Tick()
	require.NoError(t, err)

	gotWithdrawal, err := s.GetTransaction(withdrawal.ID)
	require.NoError(t, err)
	require.True(t, gotWithdrawal.Canceled)
	require.Equal(t, "500", gotWithdrawal.Balance)

	gotCredit, err := s.GetTransaction(credit.ID)
	require.NoError(t, err)
	require.False(t, gotCredit.Canceled)
	require.Equal(t, "700", gotCredit.Balance)
	require.NotNil(t, gotCredit.SettlementShardKey, "expected only the credit (latest settled) to retain its shard key")
	require.Nil(t, gotWithdrawal.SettlementShardKey, "expected the withdrawal to have its shard key pruned")
}

func TestScenario3ReplayIdempotence(t *testing.T) {
	s := newTestStore(t)
	account := mustCreateAccount(t, s, "A", "addr-A")
	ing := NewIngestor(s)

	var first *IngestResult
	for i := 0; i < 3; i++ {
		result, err := ing.Ingest(BlockchainTransaction{ID: "tx1", SenderID: account.DepositWalletAddress, Height: 100, Amount: "500"})
		require.NoErrorf(t, err, "Ingest() iteration %d", i)
		if first == nil {
			first = result
		} else {
			require.Equalf(t, first.Deposit.ID, result.Deposit.ID, "replay %d produced a different deposit", i)
			require.Equalf(t, first.Transaction.ID, result.Transaction.ID, "replay %d produced a different transaction", i)
		}
	}
}

func TestScenario4CrashRecoveryDanglingDeposit(t *testing.T) {
	s := newTestStore(t)
	account := mustCreateAccount(t, s, "A", "addr-A")

	require.NoError(t, s.CreateDeposit(&store.Deposit{ID: "tx2", AccountID: account.ID, TransactionID: "T2", Height: 50, CreatedDate: time.Now()}))

	ing := NewIngestor(s)
	result, err := ing.Ingest(BlockchainTransaction{ID: "tx2", SenderID: account.DepositWalletAddress, Height: 50, Amount: "50"})
	require.NoError(t, err)
	require.Equal(t, "T2", result.Transaction.ID, "expected adopted id T2, not freshly minted")
	require.Equal(t, store.TransactionDeposit, result.Transaction.Type)
	require.Equal(t, "50", result.Transaction.Amount)
}

// findTwoAccountIDsInDifferentShards returns two candidate account ids that
// shard.Key maps to different halves of a 2-way split, so the test can
// exercise cross-shard isolation without depending on particular hash
// outputs.
func findTwoAccountIDsInDifferentShards(t *testing.T) (idA, idB string) {
	t.Helper()
	start1, end1 := shard.Range(1, 2)

	var firstID, firstHalf string
	for i := 0; i < 10000; i++ {
		id := fmt.Sprintf("account-%d", i)
		key := shard.Key(id)
		half := "0"
		if key >= start1 && key < end1 {
			half = "1"
		}
		if firstID == "" {
			firstID, firstHalf = id, half
			continue
		}
		if half != firstHalf {
			if firstHalf == "0" {
				return firstID, id
			}
			return id, firstID
		}
	}
	t.Fatal("could not find two account ids in different shards")
	return "", ""
}

func TestScenario5ShardedIsolation(t *testing.T) {
	s := newTestStore(t)

	idA, idB := findTwoAccountIDsInDifferentShards(t)
	accountA := mustCreateAccount(t, s, idA, "addr-"+idA)
	accountB := mustCreateAccount(t, s, idB, "addr-"+idB)

	creditA, err := s.CreateTransaction(accountA.ID, store.TransactionCredit, "10", shard.Key(accountA.ID))
	require.NoError(t, err)
	creditB, err := s.CreateTransaction(accountB.ID, store.TransactionCredit, "10", shard.Key(accountB.ID))
	require.NoError(t, err)

	_, err = NewEngine(s, 0, 2).Tick()
	require.NoError(t, err)

	gotA, err := s.GetTransaction(creditA.ID)
	require.NoError(t, err)
	require.True(t, gotA.Settled, "expected shard 0's account A to be settled")

	gotB, err := s.GetTransaction(creditB.ID)
	require.NoError(t, err)
	require.False(t, gotB.Settled, "expected shard 1's account B to be untouched by shard 0's tick")
	require.NotNil(t, gotB.SettlementShardKey, "expected account B's shard key to be preserved")
}

func TestIngestUnknownSenderIsBenign(t *testing.T) {
	s := newTestStore(t)
	ing := NewIngestor(s)

	result, err := ing.Ingest(BlockchainTransaction{ID: "tx1", SenderID: "nobody-owns-this-address", Height: 1, Amount: "1"})
	require.NoError(t, err)
	require.Nil(t, result.Deposit)
	require.Nil(t, result.Transaction)
}

func TestIngestFatalWhenDepositUnreadable(t *testing.T) {
	s := newTestStore(t)
	account := mustCreateAccount(t, s, "A", "addr-A")
	ing := NewIngestor(s)

	// Force a collision against a deposit id with no corresponding row: a
	// trigger makes every deposit insert fail as a uniqueness violation, so
	// the recovery read that follows finds nothing.
	_, err := s.DB().Exec(`CREATE TRIGGER reject_deposit_insert BEFORE INSERT ON deposits
		BEGIN SELECT RAISE(ABORT, 'UNIQUE constraint failed: deposits.id'); END`)
	require.NoError(t, err)

	_, err = s.GetDeposit("never-inserted")
	require.ErrorIs(t, err, store.ErrDepositNotFound)

	_, err = ing.Ingest(BlockchainTransaction{ID: "never-inserted", SenderID: account.DepositWalletAddress, Height: 1, Amount: "1"})
	require.ErrorIs(t, err, ErrDepositIngestFatal)
}
