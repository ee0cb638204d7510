package holdings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
	"github.com/yhchan/stockledger/internal/modules/cycles"
	"github.com/yhchan/stockledger/internal/modules/replay"
)

// TxLister reads a symbol's ordered transaction history. Implemented by the
// transactions repository.
type TxLister interface {
	ListBySymbol(portfolioID, symbol string) ([]domain.Transaction, error)
	ListSymbols(portfolioID string) ([]string, error)
}

// Service recomputes and persists holdings. Recompute is a full per-symbol
// replay every time; that is the system's consistency mechanism, not an
// optimization target.
type Service struct {
	repo   *Repository
	lister TxLister
	log    zerolog.Logger
	locks  keyedMutex
}

// NewService creates a new holding service
func NewService(repo *Repository, lister TxLister, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		lister: lister,
		log:    log.With().Str("service", "holdings").Logger(),
	}
}

// Recompute replays one symbol's full history and upserts or deletes the
// derived holding. The row is deleted only when replay yields zero shares
// and a zero lifetime buy amount, i.e. no history remains. Recomputes for
// the same (portfolio, symbol) are serialized; concurrent writers would
// otherwise race on the upsert.
func (s *Service) Recompute(ctx context.Context, portfolioID, symbol string) (*Holding, error) {
	unlock := s.locks.lock(portfolioID + "\x00" + symbol)
	defer unlock()

	txs, err := s.lister.ListBySymbol(portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	if err := cycles.VerifyContiguity(txs); err != nil {
		return nil, err
	}

	all, err := replay.Reduce(txs)
	if err != nil {
		return nil, err
	}

	if all.Shares.IsZero() && all.BuyAmount.IsZero() {
		if err := s.repo.Delete(portfolioID, symbol); err != nil {
			return nil, err
		}
		return nil, nil
	}

	cycle, err := replay.Reduce(replay.CurrentCycleSlice(txs))
	if err != nil {
		return nil, err
	}

	h := buildHolding(portfolioID, symbol, all, cycle)
	if err := s.repo.Upsert(h); err != nil {
		return nil, err
	}
	return &h, nil
}

// RecomputeAll rebuilds every holding with any transaction history in the
// portfolio, one symbol at a time.
func (s *Service) RecomputeAll(ctx context.Context, portfolioID string) error {
	symbols, err := s.lister.ListSymbols(portfolioID)
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}

	for _, symbol := range symbols {
		if _, err := s.Recompute(ctx, portfolioID, symbol); err != nil {
			return fmt.Errorf("recompute of %s: %w", symbol, err)
		}
	}
	s.log.Info().Str("portfolio", portfolioID).Int("symbols", len(symbols)).Msg("Batch recompute finished")
	return nil
}

// Get returns the persisted holding, or nil when none exists.
func (s *Service) Get(ctx context.Context, portfolioID, symbol string) (*Holding, error) {
	return s.repo.Get(portfolioID, symbol)
}

// List returns all holdings of a portfolio.
func (s *Service) List(ctx context.Context, portfolioID string) ([]Holding, error) {
	return s.repo.List(portfolioID)
}

// HeldShares implements the dividend handler's holding lookup. It reports
// false when no holding row exists so the handler falls back to replay.
func (s *Service) HeldShares(ctx context.Context, portfolioID, symbol string) (decimal.Decimal, bool) {
	h, err := s.repo.Get(portfolioID, symbol)
	if err != nil || h == nil {
		return decimal.Zero, false
	}
	return h.Shares, true
}

// Detail derives the full performance view for one symbol from its history
// and the supplied quote. The quote arrives already resolved; this method
// performs no network I/O.
func (s *Service) Detail(ctx context.Context, portfolioID, symbol string, quote domain.Quote) (*Detail, error) {
	txs, err := s.lister.ListBySymbol(portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	all, err := replay.Reduce(txs)
	if err != nil {
		return nil, err
	}
	cycle, err := replay.Reduce(replay.CurrentCycleSlice(txs))
	if err != nil {
		return nil, err
	}

	h := buildHolding(portfolioID, symbol, all, cycle)

	today := time.Now()
	todayBuys, todaySells := decimal.Zero, decimal.Zero
	var beforeToday []domain.Transaction
	for _, tx := range txs {
		if sameDay(tx.Date, today) {
			switch tx.Kind {
			case domain.KindBuy:
				todayBuys = todayBuys.Add(tx.Amount)
			case domain.KindSell:
				todaySells = todaySells.Add(tx.Amount)
			}
			continue
		}
		if tx.Date.Before(today) {
			beforeToday = append(beforeToday, tx)
		}
	}

	prior, err := replay.Reduce(beforeToday)
	if err != nil {
		return nil, err
	}

	marketValue := MarketValue(h.Shares, quote.Price)
	floatAmount, floatRate := Float(quote.Price, h.HoldCost, h.Shares)
	accumAmount, accumRate := Accum(marketValue, all)
	dayAmount, dayRate := DayFloat(DayFloatInput{
		MarketValue:    marketValue,
		YesterdayValue: prior.Shares.Mul(quote.PrevClose),
		TodayBuys:      todayBuys,
		TodaySells:     todaySells,
		Price:          quote.Price,
		HoldCost:       h.HoldCost,
		Shares:         h.Shares,
	})

	return &Detail{
		Holding:     h,
		Quote:       quote,
		MarketValue: marketValue,
		FloatAmount: floatAmount,
		FloatRate:   floatRate,
		AccumAmount: accumAmount,
		AccumRate:   accumRate,
		DayAmount:   dayAmount,
		DayRate:     dayRate,
	}, nil
}

func buildHolding(portfolioID, symbol string, all, cycle replay.Aggregate) Holding {
	return Holding{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Shares:      all.Shares,
		HoldCost:    HoldCost(cycle),
		DilutedCost: DilutedCost(all),
		BuyAmount:   all.BuyAmount,
		SellAmount:  all.SellAmount,
		Dividends:   all.Dividends,
		BuyFees:     all.BuyFees,
		SellFees:    all.SellFees,
		OtherFees:   all.OtherFees,
		Active:      all.Shares.IsPositive(),
		OpenedAt:    all.OpenedAt,
		LiquidatedAt: func() time.Time {
			if all.Shares.IsPositive() {
				return time.Time{}
			}
			return all.LiquidatedAt
		}(),
		UpdatedAt: time.Now().UTC(),
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// keyedMutex serializes work per string key. Entries are reference-counted
// and removed once the last holder unlocks, so the map does not grow with
// every key ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
