// Package shard computes the deterministic account-to-shard-key mapping
// and partitions the shard key space across settlement workers.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// KeyWidth is the fixed width, in hex characters, of a shard key. Keys are
// rendered as 64-bit big-endian hex so they sort lexicographically the
// same as numerically, which the settlement gather query relies on.
const KeyWidth = 16

// maxKey is the exclusive upper bound of the shard key space: 2^64.
var maxKey = new(big.Int).Lsh(big.NewInt(1), 64)

// Key computes the shard key for an account id: the first 8 bytes of
// SHA-256(accountID), rendered as a zero-padded hex string.
func Key(accountID string) string {
	sum := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(sum[:8])
}

// openEnd is the exclusive end bound for the last shard. Shard keys are
// fixed-width 16-digit lowercase hex and the scan compares them as TEXT, so
// no 16-digit hex string can represent the open top of the space (2^64
// itself needs 17 digits and, despite being numerically correct, would
// sort below keys like "f000000000000000" under TEXT comparison). A
// sentinel whose first byte exceeds every hex digit sorts after any real
// key regardless of length and keeps the half-open scan query valid TEXT
// comparison throughout.
const openEnd = "g"

// Range divides the shard key space [0x0, 2^64) into n contiguous,
// disjoint half-open intervals and returns the i-th one as
// (start, end) strings suitable for a shard key range scan's
// `>= start AND < end` predicate. Ranges always partition the full
// space: Range(0, n) starts at all zeros and Range(n-1, n) ends at
// openEnd, which sorts after every real shard key.
func Range(i, n int) (start, end string) {
	if n <= 0 || i < 0 || i >= n {
		panic(fmt.Sprintf("shard.Range: invalid shard index %d of %d", i, n))
	}

	width := new(big.Int).Div(maxKey, big.NewInt(int64(n)))
	startInt := new(big.Int).Mul(width, big.NewInt(int64(i)))

	if i == n-1 {
		return formatKey(startInt), openEnd
	}

	endInt := new(big.Int).Mul(width, big.NewInt(int64(i+1)))
	return formatKey(startInt), formatKey(endInt)
}

func formatKey(n *big.Int) string {
	return fmt.Sprintf("%0*x", KeyWidth, n)
}
