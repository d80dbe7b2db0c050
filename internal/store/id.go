package store

import "github.com/google/uuid"

// newTransactionID mints a fresh internal transaction id (UUID v4), used
// when creating a transaction that was not itself recovered from a prior
// deposit crash.
func newTransactionID() string {
	return uuid.NewString()
}
