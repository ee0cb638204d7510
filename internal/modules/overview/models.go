package overview

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction of a cash transfer.
type Direction string

const (
	DirectionDeposit  Direction = "deposit"
	DirectionWithdraw Direction = "withdraw"
)

// Transfer is one cash movement in or out of the portfolio. Transfers form
// their own ledger, separate from trading cash flow.
type Transfer struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Comment     string          `json:"comment"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Overview is the portfolio-level rollup of all holdings plus cash.
type Overview struct {
	PortfolioID string          `json:"portfolio_id"`
	TotalAssets decimal.Decimal `json:"total_assets"`
	MarketValue decimal.Decimal `json:"market_value"`
	Cash        decimal.Decimal `json:"cash"`
	Principal   decimal.Decimal `json:"principal"`
	FloatAmount decimal.Decimal `json:"float_amount"`
	AccumAmount decimal.Decimal `json:"accum_amount"`
	DayAmount   decimal.Decimal `json:"day_amount"`
}
