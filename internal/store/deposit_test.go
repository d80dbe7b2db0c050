package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDepositCRUD(t *testing.T) {
	s := newTestStore(t)

	d := &Deposit{
		ID:            "chain-tx-1",
		AccountID:     "acct-1",
		TransactionID: "internal-tx-1",
		Height:        100,
		CreatedDate:   time.Now(),
	}

	require.NoError(t, s.CreateDeposit(d))

	got, err := s.GetDeposit(d.ID)
	require.NoError(t, err)
	require.Equal(t, d.TransactionID, got.TransactionID)
	require.EqualValues(t, 100, got.Height)
}

func TestCreateDepositIdempotencyKeyCollision(t *testing.T) {
	s := newTestStore(t)

	d1 := &Deposit{ID: "chain-tx-1", AccountID: "a1", TransactionID: "t1", Height: 1, CreatedDate: time.Now()}
	d2 := &Deposit{ID: "chain-tx-1", AccountID: "a1", TransactionID: "t2", Height: 1, CreatedDate: time.Now()}

	require.NoError(t, s.CreateDeposit(d1))
	require.ErrorIs(t, s.CreateDeposit(d2), ErrDepositAlreadyExists)
}

func TestGetDepositNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDeposit("missing")
	require.ErrorIs(t, err, ErrDepositNotFound)
}
