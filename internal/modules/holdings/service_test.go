package holdings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhchan/stockledger/internal/database"
	"github.com/yhchan/stockledger/internal/domain"
)

// fakeLister serves canned transaction histories.
type fakeLister struct {
	histories map[string][]domain.Transaction
}

func (f *fakeLister) ListBySymbol(portfolioID, symbol string) ([]domain.Transaction, error) {
	return f.histories[portfolioID+"/"+symbol], nil
}

func (f *fakeLister) ListSymbols(portfolioID string) ([]string, error) {
	var symbols []string
	for _, txs := range f.histories {
		if len(txs) > 0 && txs[0].PortfolioID == portfolioID {
			symbols = append(symbols, txs[0].Symbol)
		}
	}
	return symbols, nil
}

func testHoldingService(t *testing.T) (*Service, *fakeLister, *Repository) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	repo := NewRepository(db.Conn(), zerolog.Nop())
	lister := &fakeLister{histories: make(map[string][]domain.Transaction)}
	return NewService(repo, lister, zerolog.Nop()), lister, repo
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func buyTx(id, date, shares, price, commission string, cycle int) domain.Transaction {
	sh, pr := d(shares), d(price)
	return domain.Transaction{
		ID: id, PortfolioID: "default", Symbol: "sh600000",
		Kind: domain.KindBuy, Date: day(date),
		Shares: sh, Price: pr, Amount: sh.Mul(pr),
		Commission: d(commission), CycleID: cycle,
	}
}

func sellTx(id, date, shares, price, commission, tax string, cycle int) domain.Transaction {
	sh, pr := d(shares), d(price)
	return domain.Transaction{
		ID: id, PortfolioID: "default", Symbol: "sh600000",
		Kind: domain.KindSell, Date: day(date),
		Shares: sh, Price: pr, Amount: sh.Mul(pr),
		Commission: d(commission), Tax: d(tax), CycleID: cycle,
	}
}

func TestRecomputePersistsHolding(t *testing.T) {
	svc, lister, repo := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "1000", "10", "5", 1),
	}

	h, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)
	require.NotNil(t, h)

	assertDecimal(t, "1000", h.Shares)
	assertDecimal(t, "10.005", h.HoldCost)
	assertDecimal(t, "10.005", h.DilutedCost)
	assert.True(t, h.Active)
	assert.True(t, h.OpenedAt.Equal(day("2026-01-05")))

	stored, err := repo.Get("default", "sh600000")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assertDecimal(t, "1000", stored.Shares)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "1000", "10", "5", 1),
		sellTx("t2", "2026-01-10", "500", "12", "5", "3", 1),
	}

	first, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)

	assert.True(t, first.Shares.Equal(second.Shares))
	assert.True(t, first.HoldCost.Equal(second.HoldCost))
	assert.True(t, first.DilutedCost.Equal(second.DilutedCost))
	assert.True(t, first.SellAmount.Equal(second.SellAmount))
}

func TestRecomputeDilutedCostScenario(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "1000", "10", "5", 1),
		sellTx("t2", "2026-01-10", "500", "12", "5", "1", 1),
	}

	h, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)
	// (10000 - 6000 + 5 + 6) / 500
	assertDecimal(t, "8.022", h.DilutedCost)
	assertDecimal(t, "10.005", h.HoldCost)
}

func TestRecomputeHoldCostResetsOnReopen(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "100", "5", "0", 1),
		sellTx("t2", "2026-01-10", "100", "6", "0", "0", 1),
		buyTx("t3", "2026-02-01", "50", "7", "0", 2),
	}

	h, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)

	// Hold cost reflects only the reopened cycle's buy at 7; diluted cost
	// still carries the first cycle's realized gain.
	assertDecimal(t, "7", h.HoldCost)
	assertDecimal(t, "5", h.DilutedCost) // (850 - 600) / 50
	assertDecimal(t, "50", h.Shares)
}

func TestRecomputeLiquidatedHoldingStaysWithTotals(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "100", "5", "0", 1),
		sellTx("t2", "2026-01-10", "100", "6", "0", "0", 1),
	}

	h, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.False(t, h.Active)
	assertDecimal(t, "0", h.Shares)
	assertDecimal(t, "500", h.BuyAmount)
	assertDecimal(t, "600", h.SellAmount)
	assert.True(t, h.LiquidatedAt.Equal(day("2026-01-10")))
}

func TestRecomputeDeletesWhenHistoryGone(t *testing.T) {
	svc, lister, repo := testHoldingService(t)
	key := "default/sh600000"
	lister.histories[key] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "1000", "10", "5", 1),
	}

	_, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)

	lister.histories[key] = nil
	h, err := svc.Recompute(context.Background(), "default", "sh600000")
	require.NoError(t, err)
	assert.Nil(t, h)

	stored, err := repo.Get("default", "sh600000")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRecomputeRejectsCycleGap(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "100", "5", "0", 1),
		sellTx("t2", "2026-01-10", "100", "6", "0", "0", 1),
		buyTx("t3", "2026-02-01", "50", "7", "0", 3), // gap: no cycle 2
	}

	_, err := svc.Recompute(context.Background(), "default", "sh600000")
	var serr *domain.StateError
	assert.ErrorAs(t, err, &serr)
}

func TestHeldShares(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	ctx := context.Background()

	_, ok := svc.HeldShares(ctx, "default", "sh600000")
	assert.False(t, ok)

	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "1000", "10", "5", 1),
	}
	_, err := svc.Recompute(ctx, "default", "sh600000")
	require.NoError(t, err)

	held, ok := svc.HeldShares(ctx, "default", "sh600000")
	require.True(t, ok)
	assertDecimal(t, "1000", held)
}

func TestDetail(t *testing.T) {
	svc, lister, _ := testHoldingService(t)
	lister.histories["default/sh600000"] = []domain.Transaction{
		buyTx("t1", "2026-01-05", "1000", "10", "5", 1),
		sellTx("t2", "2026-01-10", "500", "12", "5", "1", 1),
	}

	quote := domain.Quote{
		Symbol:    "sh600000",
		Price:     d("12"),
		PrevClose: d("11.8"),
	}

	detail, err := svc.Detail(context.Background(), "default", "sh600000", quote)
	require.NoError(t, err)
	require.NotNil(t, detail)

	assertDecimal(t, "6000", detail.MarketValue)
	assertDecimal(t, "997.5", detail.FloatAmount) // (12 - 10.005) x 500

	// 6000 + 6000 - 10000 - 5 - 6 = 1989 lifetime.
	assertDecimal(t, "1989", detail.AccumAmount)

	// No trades today: day float is MV minus yesterday's close value.
	// 6000 - 500 x 11.8 = 100, over 5900.
	assertDecimal(t, "100", detail.DayAmount)
	assertDecimal(t, "0.0169", detail.DayRate.Round(4))
}

func TestKeyedMutexReleasesIdleEntries(t *testing.T) {
	var km keyedMutex

	unlock := km.lock("default/sh600000")
	assert.Len(t, km.locks, 1)
	unlock()
	assert.Empty(t, km.locks, "idle entry must be reaped")
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var km keyedMutex
	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("same")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Empty(t, km.locks)
}

func TestDetailNoHistory(t *testing.T) {
	svc, _, _ := testHoldingService(t)
	detail, err := svc.Detail(context.Background(), "default", "sh600000", domain.Quote{})
	require.NoError(t, err)
	assert.Nil(t, detail)
}
