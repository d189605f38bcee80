// Package rng provides the crypto-sourced timing randomness for the
// light sequence and signal delay, plus the deterministic hash helpers
// used as idempotency keys. Signal timing must not be predictable, so
// nothing here uses math/rand.
package rng

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	lightSteps      = 5
	lightBaseMs     = 500
	lightVarianceMs = 100
)

// Delay returns a uniformly distributed integer in [minMs, maxMs]
// inclusive. Delay(x, x) == x. minMs > maxMs is treated as the
// degenerate single-value case on minMs.
func Delay(minMs, maxMs int) int {
	if maxMs <= minMs {
		return minMs
	}
	span := big.NewInt(int64(maxMs - minMs + 1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; the midpoint keeps the sequence running.
		return minMs + (maxMs-minMs)/2
	}
	return minMs + int(n.Int64())
}

// LightSequence returns the five countdown intervals, each 500ms with
// up to 100ms of independent variance (400-600ms), total 2.0-3.0s.
func LightSequence() [lightSteps]int {
	var seq [lightSteps]int
	for i := range seq {
		seq[i] = Delay(lightBaseMs-lightVarianceMs, lightBaseMs+lightVarianceMs)
	}
	return seq
}

// PaymentReference derives the stable idempotency key for a stake
// payment. Identical inputs yield the identical reference across
// processes and restarts.
func PaymentReference(matchID, userID string, amountWei decimal.Decimal) string {
	sum := sha256.Sum256([]byte(matchID + "|" + userID + "|" + amountWei.String()))
	return hex.EncodeToString(sum[:])
}

// MatchKey derives the formation idempotency key from the sorted player
// pair, the stake and the formation time (minute precision, so a rapid
// duplicate formation request converges while rematches stay distinct).
func MatchKey(playerA, playerB string, stakeWei decimal.Decimal, formedAt time.Time) string {
	pair := []string{playerA, playerB}
	sort.Strings(pair)
	raw := fmt.Sprintf("%s|%s|%s|%d", pair[0], pair[1], stakeWei.String(), formedAt.UTC().Unix()/60)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DepositReference derives the claim key for an orphaned deposit, kept
// separate from the stake reference namespace.
func DepositReference(userID string, amountWei decimal.Decimal) string {
	sum := sha256.Sum256([]byte("deposit|" + strings.TrimSpace(userID) + "|" + amountWei.String()))
	return hex.EncodeToString(sum[:])
}
