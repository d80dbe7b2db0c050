// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"fmt"
	"math/big"
)

// ParseLedgerAmount parses a canonical decimal big-integer string (as stored
// in Transaction.amount / Transaction.balance) into a *big.Int. It rejects
// empty strings, negative values, and anything that isn't a bare base-10
// integer (no decimal point, no leading '+').
func ParseLedgerAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount string")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid character in amount: %q", s)
		}
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative: %q", s)
	}
	return n, nil
}

// FormatLedgerAmount renders a *big.Int as its canonical decimal string for
// storage. nil is treated as zero.
func FormatLedgerAmount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
