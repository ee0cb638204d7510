package overview

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
	"github.com/yhchan/stockledger/internal/modules/holdings"
)

// HoldingReader provides the per-symbol views the rollup sums over.
// Implemented by the holdings service.
type HoldingReader interface {
	List(ctx context.Context, portfolioID string) ([]holdings.Holding, error)
	Detail(ctx context.Context, portfolioID, symbol string, quote domain.Quote) (*holdings.Detail, error)
}

// Service rolls all holdings plus the cash ledger up into one
// portfolio-level overview.
type Service struct {
	transfers *TransferRepository
	holdings  HoldingReader
	log       zerolog.Logger
}

// NewService creates a new overview service
func NewService(transfers *TransferRepository, holdingReader HoldingReader, log zerolog.Logger) *Service {
	return &Service{
		transfers: transfers,
		holdings:  holdingReader,
		log:       log.With().Str("service", "overview").Logger(),
	}
}

// RecordTransfer validates and persists a cash deposit or withdrawal.
func (s *Service) RecordTransfer(ctx context.Context, portfolioID string, direction Direction, amount decimal.Decimal, date time.Time, comment string) (*Transfer, error) {
	if date.After(time.Now()) {
		return nil, domain.NewValidationError("transfer date must not be in the future")
	}

	t := Transfer{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		Direction:   direction,
		Amount:      amount,
		Date:        date,
		Comment:     comment,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.transfers.Insert(t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransfers returns the portfolio's cash ledger.
func (s *Service) ListTransfers(ctx context.Context, portfolioID string) ([]Transfer, error) {
	return s.transfers.List(portfolioID)
}

// Compute builds the portfolio overview. Cash is the transfer ledger netted
// against lifetime trading cash flow: deposits minus withdrawals, minus
// buys and all fees, plus sells and cash dividends. Holdings without a
// supplied quote still contribute their cash flow but no market value.
func (s *Service) Compute(ctx context.Context, portfolioID string, quotes map[string]domain.Quote) (*Overview, error) {
	o := &Overview{
		PortfolioID: portfolioID,
		TotalAssets: decimal.Zero,
		MarketValue: decimal.Zero,
		Cash:        decimal.Zero,
		Principal:   decimal.Zero,
		FloatAmount: decimal.Zero,
		AccumAmount: decimal.Zero,
		DayAmount:   decimal.Zero,
	}

	transfers, err := s.transfers.List(portfolioID)
	if err != nil {
		return nil, err
	}
	for _, t := range transfers {
		switch t.Direction {
		case DirectionDeposit:
			o.Principal = o.Principal.Add(t.Amount)
		case DirectionWithdraw:
			o.Principal = o.Principal.Sub(t.Amount)
		}
	}
	o.Cash = o.Principal

	hs, err := s.holdings.List(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	for _, h := range hs {
		// Closed holdings still carry realized cash flow.
		o.Cash = o.Cash.
			Add(h.SellAmount).Sub(h.SellFees).
			Add(h.Dividends).
			Sub(h.BuyAmount).Sub(h.BuyFees).Sub(h.OtherFees)

		if !h.Active {
			continue
		}

		quote, ok := quotes[h.Symbol]
		if !ok {
			s.log.Warn().Str("symbol", h.Symbol).Msg("No quote for active holding, skipping market value")
			continue
		}

		detail, err := s.holdings.Detail(ctx, portfolioID, h.Symbol, quote)
		if err != nil {
			return nil, fmt.Errorf("detail of %s: %w", h.Symbol, err)
		}
		if detail == nil {
			continue
		}

		o.MarketValue = o.MarketValue.Add(detail.MarketValue)
		o.FloatAmount = o.FloatAmount.Add(detail.FloatAmount)
		o.AccumAmount = o.AccumAmount.Add(detail.AccumAmount)
		o.DayAmount = o.DayAmount.Add(detail.DayAmount)
	}

	o.TotalAssets = o.MarketValue.Add(o.Cash)
	return o, nil
}
