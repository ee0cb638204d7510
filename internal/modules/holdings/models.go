package holdings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
)

// Holding is the persisted materialized view of one symbol's position. It is
// always fully derivable by replaying the symbol's transactions and is never
// independently mutated.
type Holding struct {
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Shares      decimal.Decimal `json:"shares"`
	HoldCost    decimal.Decimal `json:"hold_cost"`
	DilutedCost decimal.Decimal `json:"diluted_cost"`

	// Lifetime totals across every cycle.
	BuyAmount  decimal.Decimal `json:"buy_amount"`
	SellAmount decimal.Decimal `json:"sell_amount"`
	Dividends  decimal.Decimal `json:"dividends"`
	BuyFees    decimal.Decimal `json:"buy_fees"`
	SellFees   decimal.Decimal `json:"sell_fees"`
	OtherFees  decimal.Decimal `json:"other_fees"`

	Active       bool      `json:"active"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
	LiquidatedAt time.Time `json:"liquidated_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Detail is the per-symbol performance view derived from a holding plus a
// current quote.
type Detail struct {
	Holding     Holding         `json:"holding"`
	Quote       domain.Quote    `json:"quote"`
	MarketValue decimal.Decimal `json:"market_value"`

	FloatAmount decimal.Decimal `json:"float_amount"`
	FloatRate   decimal.Decimal `json:"float_rate"`
	AccumAmount decimal.Decimal `json:"accum_amount"`
	AccumRate   decimal.Decimal `json:"accum_rate"`
	DayAmount   decimal.Decimal `json:"day_amount"`
	DayRate     decimal.Decimal `json:"day_rate"`
}
