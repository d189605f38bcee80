// Package settlement computes payout and refund amounts. All math runs
// on integral wei with fee rates in basis points; floating point never
// touches a final amount.
package settlement

import (
	"github.com/shopspring/decimal"

	"blinkbattle/internal/apperr"
)

const (
	// DefaultPlatformFeeBps is the platform cut on a match pool (3%).
	DefaultPlatformFeeBps = 300
	// DefaultGasFeeBps is the flat deduction on single-stake refunds.
	DefaultGasFeeBps = 300

	bpsDenominator = 10000
	weiPerToken    = 18
)

var (
	two    = decimal.NewFromInt(2)
	bpsDen = decimal.NewFromInt(bpsDenominator)
)

// Payout is the settlement of a decided match: both stakes pooled, the
// platform fee carved out, the remainder owed to the winner.
type Payout struct {
	TotalPoolWei   decimal.Decimal
	PlatformFeeWei decimal.Decimal
	NetPayoutWei   decimal.Decimal
}

// Refund is the settlement of a single returned stake.
type Refund struct {
	RefundWei     decimal.Decimal
	RefundDisplay decimal.Decimal
}

// ComputePayout pools both players' stakes and deducts the platform fee
// at feeBps basis points. stakeWei must be a non-negative integer wei
// amount.
func ComputePayout(stakeWei decimal.Decimal, feeBps int64) (Payout, error) {
	if err := validateWei(stakeWei); err != nil {
		return Payout{}, err
	}
	if feeBps < 0 || feeBps > bpsDenominator {
		return Payout{}, apperr.New(apperr.KindValidation, "fee bps out of range")
	}
	pool := stakeWei.Mul(two)
	fee := pool.Mul(decimal.NewFromInt(feeBps)).DivRound(bpsDen, 0)
	return Payout{
		TotalPoolWei:   pool,
		PlatformFeeWei: fee,
		NetPayoutWei:   pool.Sub(fee),
	}, nil
}

// ComputeRefund deducts a flat gas-fee percentage from a single
// player's stake. Only the one stake is involved, never the opponent's.
func ComputeRefund(amountWei decimal.Decimal, gasFeeBps int64) (Refund, error) {
	if err := validateWei(amountWei); err != nil {
		return Refund{}, err
	}
	if gasFeeBps < 0 || gasFeeBps > bpsDenominator {
		return Refund{}, apperr.New(apperr.KindValidation, "gas fee bps out of range")
	}
	fee := amountWei.Mul(decimal.NewFromInt(gasFeeBps)).DivRound(bpsDen, 0)
	refund := amountWei.Sub(fee)
	return Refund{
		RefundWei:     refund,
		RefundDisplay: refund.Shift(-weiPerToken),
	}, nil
}

// ToWei converts displayed token units into integral wei.
func ToWei(display decimal.Decimal) decimal.Decimal {
	return display.Shift(weiPerToken).Truncate(0)
}

func validateWei(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.New(apperr.KindValidation, "amount must not be negative")
	}
	if !amount.Equal(amount.Truncate(0)) {
		return apperr.New(apperr.KindValidation, "amount must be integral wei")
	}
	return nil
}
