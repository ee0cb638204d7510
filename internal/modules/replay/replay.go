// Package replay folds an ordered transaction history into running
// aggregate totals. The fold is a pure function of its input: no clock, no
// counters, no I/O. Recomputing a holding is therefore idempotent, which is
// what lets derived state be rebuilt from scratch at any time.
package replay

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
)

var ten = decimal.NewFromInt(10)

// Aggregate holds the running totals produced by replaying one symbol's
// transaction history.
type Aggregate struct {
	Shares     decimal.Decimal // currently held shares
	BuyShares  decimal.Decimal // buy-only shares, denominator for hold cost
	BuyAmount  decimal.Decimal
	SellAmount decimal.Decimal
	Dividends  decimal.Decimal // cumulative cash dividends

	// Fee buckets, attributed by the originating transaction kind.
	BuyFees   decimal.Decimal
	SellFees  decimal.Decimal
	OtherFees decimal.Decimal

	OpenedAt     time.Time // date of the first buy seen
	LiquidatedAt time.Time // date the position last returned to zero
}

// NewAggregate returns a zeroed aggregate.
func NewAggregate() Aggregate {
	return Aggregate{
		Shares:     decimal.Zero,
		BuyShares:  decimal.Zero,
		BuyAmount:  decimal.Zero,
		SellAmount: decimal.Zero,
		Dividends:  decimal.Zero,
		BuyFees:    decimal.Zero,
		SellFees:   decimal.Zero,
		OtherFees:  decimal.Zero,
	}
}

// Reduce folds a chronologically ordered transaction slice into an
// aggregate. A sell that exceeds the running share count is a StateError;
// totals are never clamped.
func Reduce(txs []domain.Transaction) (Aggregate, error) {
	agg := NewAggregate()

	for _, tx := range txs {
		fees := tx.Commission.Add(tx.Tax).Add(tx.TransferFee)

		switch tx.Kind {
		case domain.KindBuy:
			agg.Shares = agg.Shares.Add(tx.Shares)
			agg.BuyShares = agg.BuyShares.Add(tx.Shares)
			agg.BuyAmount = agg.BuyAmount.Add(tx.Amount)
			agg.BuyFees = agg.BuyFees.Add(fees)
			if agg.OpenedAt.IsZero() {
				agg.OpenedAt = tx.Date
			}

		case domain.KindSell:
			if tx.Shares.GreaterThan(agg.Shares) {
				return Aggregate{}, domain.NewStateError(fmt.Sprintf(
					"sell of %s shares exceeds %s held for %s",
					tx.Shares, agg.Shares, tx.Symbol))
			}
			agg.Shares = agg.Shares.Sub(tx.Shares)
			agg.SellAmount = agg.SellAmount.Add(tx.Amount)
			agg.SellFees = agg.SellFees.Add(fees)
			if agg.Shares.IsZero() {
				agg.LiquidatedAt = tx.Date
			}

		case domain.KindMerge:
			if !tx.Ratio.IsPositive() {
				return Aggregate{}, domain.NewValidationError("merge ratio must be positive")
			}
			agg.Shares = agg.Shares.Div(tx.Ratio)
			agg.BuyShares = agg.BuyShares.Div(tx.Ratio)
			agg.OtherFees = agg.OtherFees.Add(fees)

		case domain.KindSplit:
			if !tx.Ratio.IsPositive() {
				return Aggregate{}, domain.NewValidationError("split ratio must be positive")
			}
			agg.Shares = agg.Shares.Mul(tx.Ratio)
			agg.BuyShares = agg.BuyShares.Mul(tx.Ratio)
			agg.OtherFees = agg.OtherFees.Add(fees)

		case domain.KindDividend:
			// All legs are computed off the share count as of the event,
			// before any leg is applied.
			base := agg.Shares
			agg.Dividends = agg.Dividends.Add(tx.DividendPer10.Div(ten).Mul(base))
			stock := tx.BonusPer10.Div(ten).Mul(base).
				Add(tx.TransferPer10.Div(ten).Mul(base))
			agg.Shares = agg.Shares.Add(stock)
			agg.BuyShares = agg.BuyShares.Add(stock)
			agg.OtherFees = agg.OtherFees.Add(fees)

		default:
			return Aggregate{}, domain.NewValidationError(fmt.Sprintf(
				"unknown transaction kind %d", tx.Kind))
		}
	}

	return agg, nil
}

// CurrentCycleSlice returns the suffix of txs belonging to the currently
// open position cycle, i.e. every transaction after the last full
// liquidation. When the history ends flat, the slice is empty.
func CurrentCycleSlice(txs []domain.Transaction) []domain.Transaction {
	shares := decimal.Zero
	start := 0

	for i, tx := range txs {
		switch tx.Kind {
		case domain.KindBuy:
			shares = shares.Add(tx.Shares)
		case domain.KindSell:
			shares = shares.Sub(tx.Shares)
			if !shares.IsPositive() {
				start = i + 1
			}
		case domain.KindMerge:
			if tx.Ratio.IsPositive() {
				shares = shares.Div(tx.Ratio)
			}
		case domain.KindSplit:
			shares = shares.Mul(tx.Ratio)
		case domain.KindDividend:
			base := shares
			shares = shares.
				Add(tx.BonusPer10.Div(ten).Mul(base)).
				Add(tx.TransferPer10.Div(ten).Mul(base))
		}
	}

	return txs[start:]
}
