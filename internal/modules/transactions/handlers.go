package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/config"
	"github.com/yhchan/stockledger/internal/domain"
	"github.com/yhchan/stockledger/internal/modules/cycles"
	"github.com/yhchan/stockledger/internal/modules/fees"
	"github.com/yhchan/stockledger/internal/modules/replay"
)

// Input is the raw transaction submitted by a caller. Handlers turn it into
// a canonical persisted record.
type Input struct {
	PortfolioID   string          `json:"portfolio_id"`
	Symbol        string          `json:"symbol"`
	Kind          domain.Kind     `json:"kind"`
	Date          time.Time       `json:"date"`
	Shares        decimal.Decimal `json:"shares"`
	Price         decimal.Decimal `json:"price"`
	Ratio         decimal.Decimal `json:"ratio"`
	DividendPer10 decimal.Decimal `json:"dividend_per_10"`
	BonusPer10    decimal.Decimal `json:"bonus_per_10"`
	TransferPer10 decimal.Decimal `json:"transfer_per_10"`
	Comment       string          `json:"comment"`
}

// HeldSharesLookup resolves the currently held share count from persisted
// derived state. The dividend handler prefers it over a full replay; when it
// reports no holding, the handler falls back to replaying the history.
type HeldSharesLookup interface {
	HeldShares(ctx context.Context, portfolioID, symbol string) (decimal.Decimal, bool)
}

// Handler turns raw input plus the symbol's existing ordered history into a
// canonical transaction record. Handlers never persist and never mutate
// shared state.
type Handler interface {
	Supports(kind domain.Kind) bool
	Handle(ctx context.Context, in Input, history []domain.Transaction) (*domain.Transaction, error)
}

// Dispatcher resolves the one handler whose supported kinds include the
// input kind. An unknown kind is a hard error, not a silent no-op.
type Dispatcher struct {
	handlers []Handler
}

// NewDispatcher builds the standard handler set.
func NewDispatcher(schedule config.FeeSchedule, cycleMgr *cycles.Manager, holdings HeldSharesLookup, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: []Handler{
			NewTradeHandler(schedule, cycleMgr, log),
			NewRatioHandler(cycleMgr, log),
			NewDividendHandler(cycleMgr, holdings, log),
		},
	}
}

// Process validates the input and dispatches it to its handler.
func (d *Dispatcher) Process(ctx context.Context, in Input, history []domain.Transaction) (*domain.Transaction, error) {
	if err := validateCommon(in); err != nil {
		return nil, err
	}
	for _, h := range d.handlers {
		if h.Supports(in.Kind) {
			return h.Handle(ctx, in, history)
		}
	}
	return nil, domain.NewValidationError(fmt.Sprintf("no handler for transaction kind %d", in.Kind))
}

func validateCommon(in Input) error {
	if in.PortfolioID == "" {
		return domain.NewValidationError("portfolio id is required")
	}
	if !in.Kind.Valid() {
		return domain.NewValidationError(fmt.Sprintf("unknown transaction kind %d", in.Kind))
	}
	if in.Date.IsZero() {
		return domain.NewValidationError("transaction date is required")
	}
	if in.Date.After(time.Now()) {
		return domain.NewValidationError("transaction date must not be in the future")
	}
	if _, err := fees.Classify(in.Symbol); err != nil {
		return err
	}
	return nil
}

// TradeHandler produces buy and sell records. The persisted amount is the
// gross trade amount (shares x price); fees are carried as separate
// itemized fields and never folded into the amount.
type TradeHandler struct {
	schedule config.FeeSchedule
	cycles   *cycles.Manager
	log      zerolog.Logger
}

func NewTradeHandler(schedule config.FeeSchedule, cycleMgr *cycles.Manager, log zerolog.Logger) *TradeHandler {
	return &TradeHandler{
		schedule: schedule,
		cycles:   cycleMgr,
		log:      log.With().Str("handler", "trade").Logger(),
	}
}

func (h *TradeHandler) Supports(kind domain.Kind) bool {
	return kind == domain.KindBuy || kind == domain.KindSell
}

func (h *TradeHandler) Handle(ctx context.Context, in Input, history []domain.Transaction) (*domain.Transaction, error) {
	if !in.Shares.IsPositive() {
		return nil, domain.NewValidationError("shares must be positive")
	}
	if !in.Price.IsPositive() {
		return nil, domain.NewValidationError("price must be positive")
	}

	side := domain.SideBuy
	if in.Kind == domain.KindSell {
		side = domain.SideSell

		held, err := h.cycles.CurrentShares(history)
		if err != nil {
			return nil, fmt.Errorf("failed to replay history: %w", err)
		}
		if in.Shares.GreaterThan(held) {
			return nil, domain.NewStateError(fmt.Sprintf(
				"sell of %s shares exceeds %s held for %s", in.Shares, held, in.Symbol))
		}
	}

	amount := in.Shares.Mul(in.Price)
	breakdown, err := fees.Calculate(in.Symbol, side, amount, h.schedule)
	if err != nil {
		return nil, err
	}

	cycleID, err := h.cycles.Assign(history, in.Kind)
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		PortfolioID: in.PortfolioID,
		Symbol:      in.Symbol,
		Kind:        in.Kind,
		Date:        in.Date,
		Shares:      in.Shares,
		Price:       in.Price,
		Amount:      amount,
		Commission:  breakdown.Commission,
		Tax:         breakdown.Tax,
		TransferFee: breakdown.TransferFee,
		Ratio:       decimal.Zero,
		CycleID:     cycleID,
		Comment:     in.Comment,
	}, nil
}

// RatioHandler produces merge and split records. It is stateless: only the
// ratio is recorded and every monetary field is zero; replay applies the
// rescaling.
type RatioHandler struct {
	cycles *cycles.Manager
	log    zerolog.Logger
}

func NewRatioHandler(cycleMgr *cycles.Manager, log zerolog.Logger) *RatioHandler {
	return &RatioHandler{
		cycles: cycleMgr,
		log:    log.With().Str("handler", "ratio").Logger(),
	}
}

func (h *RatioHandler) Supports(kind domain.Kind) bool {
	return kind == domain.KindMerge || kind == domain.KindSplit
}

func (h *RatioHandler) Handle(ctx context.Context, in Input, history []domain.Transaction) (*domain.Transaction, error) {
	if !in.Ratio.IsPositive() {
		return nil, domain.NewValidationError("ratio must be positive")
	}

	cycleID, err := h.cycles.Assign(history, in.Kind)
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		PortfolioID: in.PortfolioID,
		Symbol:      in.Symbol,
		Kind:        in.Kind,
		Date:        in.Date,
		Shares:      decimal.Zero,
		Price:       decimal.Zero,
		Amount:      decimal.Zero,
		Commission:  decimal.Zero,
		Tax:         decimal.Zero,
		TransferFee: decimal.Zero,
		Ratio:       in.Ratio,
		CycleID:     cycleID,
		Comment:     in.Comment,
	}, nil
}

// DividendHandler produces dividend records carrying the per-10-shares
// parameters. The cash leg's absolute figure (heldShares x per10 / 10) is
// recorded in the amount field for display; replay derives all totals from
// the per-10 parameters so edits stay consistent.
type DividendHandler struct {
	cycles   *cycles.Manager
	holdings HeldSharesLookup
	log      zerolog.Logger
}

func NewDividendHandler(cycleMgr *cycles.Manager, holdings HeldSharesLookup, log zerolog.Logger) *DividendHandler {
	return &DividendHandler{
		cycles:   cycleMgr,
		holdings: holdings,
		log:      log.With().Str("handler", "dividend").Logger(),
	}
}

func (h *DividendHandler) Supports(kind domain.Kind) bool {
	return kind == domain.KindDividend
}

func (h *DividendHandler) Handle(ctx context.Context, in Input, history []domain.Transaction) (*domain.Transaction, error) {
	if in.DividendPer10.IsNegative() || in.BonusPer10.IsNegative() || in.TransferPer10.IsNegative() {
		return nil, domain.NewValidationError("dividend parameters must not be negative")
	}
	if in.DividendPer10.IsZero() && in.BonusPer10.IsZero() && in.TransferPer10.IsZero() {
		return nil, domain.NewValidationError("dividend event needs at least one non-zero leg")
	}

	held, err := h.resolveHeldShares(ctx, in, history)
	if err != nil {
		return nil, err
	}
	if !held.IsPositive() {
		return nil, domain.NewStateError(fmt.Sprintf("no shares held for %s", in.Symbol))
	}

	cycleID, err := h.cycles.Assign(history, in.Kind)
	if err != nil {
		return nil, err
	}

	cash := held.Mul(in.DividendPer10).Div(decimal.NewFromInt(10))

	return &domain.Transaction{
		PortfolioID:   in.PortfolioID,
		Symbol:        in.Symbol,
		Kind:          in.Kind,
		Date:          in.Date,
		Shares:        decimal.Zero,
		Price:         decimal.Zero,
		Amount:        cash,
		Commission:    decimal.Zero,
		Tax:           decimal.Zero,
		TransferFee:   decimal.Zero,
		Ratio:         decimal.Zero,
		DividendPer10: in.DividendPer10,
		BonusPer10:    in.BonusPer10,
		TransferPer10: in.TransferPer10,
		CycleID:       cycleID,
		Comment:       in.Comment,
	}, nil
}

func (h *DividendHandler) resolveHeldShares(ctx context.Context, in Input, history []domain.Transaction) (decimal.Decimal, error) {
	if h.holdings != nil {
		if held, ok := h.holdings.HeldShares(ctx, in.PortfolioID, in.Symbol); ok {
			return held, nil
		}
	}

	agg, err := replay.Reduce(history)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to replay history: %w", err)
	}
	return agg.Shares, nil
}
