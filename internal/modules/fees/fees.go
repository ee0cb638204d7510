// Package fees computes commission and transaction taxes for a trade.
// Everything here is a pure function over the configured fee schedule; all
// arithmetic is exact decimal.
package fees

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/config"
	"github.com/yhchan/stockledger/internal/domain"
)

// Exchange identifies the listing venue encoded in a symbol prefix.
type Exchange string

const (
	ExchangeShanghai Exchange = "sh"
	ExchangeShenzhen Exchange = "sz"
)

// Class is the fee-relevant classification of an instrument.
type Class struct {
	Exchange Exchange
	IsFund   bool
}

// Breakdown itemizes the fees of one trade.
type Breakdown struct {
	Commission  decimal.Decimal `json:"commission"`
	Tax         decimal.Decimal `json:"tax"`
	TransferFee decimal.Decimal `json:"transfer_fee"`
	Total       decimal.Decimal `json:"total"`
	Description string          `json:"description"`
}

var symbolPattern = regexp.MustCompile(`^(sh|sz)(\d{6})$`)

// Classify derives the exchange and fund-vs-equity classification from a
// symbol such as "sh600000" or "sz161725". Shanghai funds are 5-prefixed,
// Shenzhen funds 15/16/18-prefixed; everything else is equity-like.
func Classify(symbol string) (Class, error) {
	m := symbolPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(symbol)))
	if m == nil {
		return Class{}, domain.NewValidationError(fmt.Sprintf("unrecognized symbol format: %q", symbol))
	}

	class := Class{Exchange: Exchange(m[1])}
	code := m[2]
	switch class.Exchange {
	case ExchangeShanghai:
		class.IsFund = strings.HasPrefix(code, "5")
	case ExchangeShenzhen:
		class.IsFund = strings.HasPrefix(code, "15") ||
			strings.HasPrefix(code, "16") ||
			strings.HasPrefix(code, "18")
	}
	return class, nil
}

// Calculate itemizes the fees for a trade of the given gross amount.
//
// Commission is max(amount x rate, minimum), with the rate pair chosen by
// classification. The transfer fee applies to Shanghai equities on both
// sides. Stamp tax applies to equity sells only. Funds pay neither.
func Calculate(symbol string, side domain.Side, amount decimal.Decimal, schedule config.FeeSchedule) (Breakdown, error) {
	if amount.IsNegative() {
		return Breakdown{}, domain.NewValidationError("trade amount must not be negative")
	}

	class, err := Classify(symbol)
	if err != nil {
		return Breakdown{}, err
	}

	rate, min := schedule.EquityCommissionRate, schedule.EquityCommissionMin
	if class.IsFund {
		rate, min = schedule.FundCommissionRate, schedule.FundCommissionMin
	}

	commission := amount.Mul(rate)
	if commission.LessThan(min) {
		commission = min
	}

	tax := decimal.Zero
	if !class.IsFund && side == domain.SideSell {
		tax = amount.Mul(schedule.StampTaxRate)
	}

	transferFee := decimal.Zero
	if !class.IsFund && class.Exchange == ExchangeShanghai {
		transferFee = amount.Mul(schedule.TransferFeeRate)
	}

	b := Breakdown{
		Commission:  commission,
		Tax:         tax,
		TransferFee: transferFee,
		Total:       commission.Add(tax).Add(transferFee),
	}
	b.Description = describe(class, side, b)
	return b, nil
}

func describe(class Class, side domain.Side, b Breakdown) string {
	kind := "equity"
	if class.IsFund {
		kind = "fund"
	}
	return fmt.Sprintf("%s %s on %s: commission %s, tax %s, transfer fee %s",
		side, kind, class.Exchange, b.Commission, b.Tax, b.TransferFee)
}
