package holdings

import (
	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/modules/replay"
)

// Every formula in this file is pure and uses exact decimal arithmetic.
// Division by zero is never an exception: each formula documents its zero
// policy and returns 0 when the denominator is empty.

// HoldCost is the average cost per share of the currently open cycle,
// including buy-side fees. Zero when the cycle has no buy shares.
func HoldCost(cycle replay.Aggregate) decimal.Decimal {
	if !cycle.BuyShares.IsPositive() {
		return decimal.Zero
	}
	return cycle.BuyAmount.Add(cycle.BuyFees).Div(cycle.BuyShares)
}

// DilutedCost is the lifetime average cost per share: all buys net of all
// sells, plus every fee bucket, minus cash dividends, spread over the
// current share count. Zero when no shares are held.
func DilutedCost(all replay.Aggregate) decimal.Decimal {
	if !all.Shares.IsPositive() {
		return decimal.Zero
	}
	net := all.BuyAmount.Sub(all.SellAmount).
		Add(all.BuyFees).Add(all.SellFees).Add(all.OtherFees).
		Sub(all.Dividends)
	return net.Div(all.Shares)
}

// MarketValue is shares x the latest quote price.
func MarketValue(shares, price decimal.Decimal) decimal.Decimal {
	return shares.Mul(price)
}

// Float is the unrealized P&L of the open position against hold cost:
// (price - holdCost) x shares. The rate normalizes by holdCost x shares and
// is zero when that cost basis is zero.
func Float(price, holdCost, shares decimal.Decimal) (amount, rate decimal.Decimal) {
	amount = price.Sub(holdCost).Mul(shares)
	basis := holdCost.Mul(shares)
	if !basis.IsPositive() {
		return amount, decimal.Zero
	}
	return amount, amount.Div(basis)
}

// Accum is the lifetime P&L: market value plus everything taken out (sells,
// cash dividends) minus everything put in (buys and all fees). The rate
// normalizes by lifetime buy cost including buy-side fees, zero when there
// were no buys.
func Accum(marketValue decimal.Decimal, all replay.Aggregate) (amount, rate decimal.Decimal) {
	amount = marketValue.
		Add(all.SellAmount).Add(all.Dividends).
		Sub(all.BuyAmount).Sub(all.BuyFees).Sub(all.SellFees).Sub(all.OtherFees)
	basis := all.BuyAmount.Add(all.BuyFees)
	if !basis.IsPositive() {
		return amount, decimal.Zero
	}
	return amount, amount.Div(basis)
}

// DayFloatInput carries the figures the day P&L formula needs. TodayBuys and
// TodaySells are gross trade amounts of today's trades; YesterdayValue is
// the position's market value at yesterday's close (shares held before
// today x previous close price).
type DayFloatInput struct {
	MarketValue    decimal.Decimal
	YesterdayValue decimal.Decimal
	TodayBuys      decimal.Decimal
	TodaySells     decimal.Decimal
	Price          decimal.Decimal
	HoldCost       decimal.Decimal
	Shares         decimal.Decimal
}

// DayFloat is today's P&L. With a known positive yesterday close value:
// marketValue - yesterdayValue + todaySells - todayBuys, normalized by
// (yesterdayValue + todayBuys). For a position opened today there is no
// close to measure against, so the float against hold cost stands in:
// (price - holdCost) x shares + todaySells - todayBuys, normalized by
// todayBuys. Both rates are zero when their denominator is.
func DayFloat(in DayFloatInput) (amount, rate decimal.Decimal) {
	if in.YesterdayValue.IsPositive() {
		amount = in.MarketValue.Sub(in.YesterdayValue).
			Add(in.TodaySells).Sub(in.TodayBuys)
		basis := in.YesterdayValue.Add(in.TodayBuys)
		if !basis.IsPositive() {
			return amount, decimal.Zero
		}
		return amount, amount.Div(basis)
	}

	amount = in.Price.Sub(in.HoldCost).Mul(in.Shares).
		Add(in.TodaySells).Sub(in.TodayBuys)
	if !in.TodayBuys.IsPositive() {
		return amount, decimal.Zero
	}
	return amount, amount.Div(in.TodayBuys)
}
