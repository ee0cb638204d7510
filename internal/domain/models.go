package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a transaction kind. The set is closed: every switch over
// Kind must handle all five values and fail on anything else.
type Kind int

const (
	KindBuy Kind = iota
	KindSell
	KindMerge
	KindSplit
	KindDividend
)

// String returns the canonical name for a transaction kind.
func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindMerge:
		return "merge"
	case KindSplit:
		return "split"
	case KindDividend:
		return "dividend"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the five known kinds.
func (k Kind) Valid() bool {
	return k >= KindBuy && k <= KindDividend
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "buy":
		return KindBuy, nil
	case "sell":
		return KindSell, nil
	case "merge":
		return KindMerge, nil
	case "split":
		return KindSplit, nil
	case "dividend":
		return KindDividend, nil
	default:
		return 0, NewValidationError("unknown transaction kind: " + s)
	}
}

// Side is the direction of a trade, used by the fee calculator.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is one immutable fact in a symbol's history. Edits and deletes
// replace the fact set for the symbol; derived state is never patched in
// place. All monetary and share fields are exact decimals.
type Transaction struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Kind        Kind            `json:"kind"`
	Date        time.Time       `json:"date"`
	Shares      decimal.Decimal `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"` // gross, shares x price
	Commission  decimal.Decimal `json:"commission"`
	Tax         decimal.Decimal `json:"tax"`
	TransferFee decimal.Decimal `json:"transfer_fee"`

	// Ratio applies to merge (shares / ratio) and split (shares x ratio).
	Ratio decimal.Decimal `json:"ratio"`

	// Dividend parameters, all expressed per 10 held shares.
	DividendPer10 decimal.Decimal `json:"dividend_per_10"` // cash
	BonusPer10    decimal.Decimal `json:"bonus_per_10"`    // bonus shares
	TransferPer10 decimal.Decimal `json:"transfer_per_10"` // capitalization transfer shares

	CycleID   int       `json:"cycle_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Quote is a resolved market quote for one symbol. The core never fetches
// quotes itself; callers pass them in already resolved.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}
