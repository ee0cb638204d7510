package holdings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/yhchan/stockledger/internal/modules/replay"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %s, got %s %v", want, got, msgAndArgs)
}

func TestHoldCost(t *testing.T) {
	// Buy 1000 @ 10 with commission 5.
	cycle := replay.NewAggregate()
	cycle.BuyShares = d("1000")
	cycle.BuyAmount = d("10000")
	cycle.BuyFees = d("5")

	assertDecimal(t, "10.005", HoldCost(cycle))
}

func TestHoldCostZeroPolicy(t *testing.T) {
	assertDecimal(t, "0", HoldCost(replay.NewAggregate()))
}

func TestDilutedCost(t *testing.T) {
	// Buy 1000 @ 10 (commission 5), sell 500 @ 12 (fees 6):
	// (10000 - 6000 + 5 + 6) / 500 = 8.022 for the remaining 500.
	all := replay.NewAggregate()
	all.Shares = d("500")
	all.BuyAmount = d("10000")
	all.SellAmount = d("6000")
	all.BuyFees = d("5")
	all.SellFees = d("6")

	assertDecimal(t, "8.022", DilutedCost(all))
}

func TestDilutedCostSubtractsDividends(t *testing.T) {
	all := replay.NewAggregate()
	all.Shares = d("1000")
	all.BuyAmount = d("10000")
	all.Dividends = d("200")

	assertDecimal(t, "9.8", DilutedCost(all))
}

func TestDilutedCostZeroPolicy(t *testing.T) {
	all := replay.NewAggregate()
	all.BuyAmount = d("10000")
	all.SellAmount = d("11000")

	assertDecimal(t, "0", DilutedCost(all))
}

func TestFloat(t *testing.T) {
	amount, rate := Float(d("12"), d("10.005"), d("500"))
	assertDecimal(t, "997.5", amount)
	assertDecimal(t, "0.1994003", rate.Round(7))
}

func TestFloatZeroPolicy(t *testing.T) {
	amount, rate := Float(d("12"), d("0"), d("0"))
	assertDecimal(t, "0", amount)
	assertDecimal(t, "0", rate)
}

func TestAccum(t *testing.T) {
	all := replay.NewAggregate()
	all.Shares = d("500")
	all.BuyAmount = d("10000")
	all.SellAmount = d("6000")
	all.BuyFees = d("5")
	all.SellFees = d("6")
	all.Dividends = d("100")

	marketValue := d("6000") // 500 @ 12
	amount, rate := Accum(marketValue, all)
	// 6000 + 6000 + 100 - 10000 - 5 - 6 = 2089
	assertDecimal(t, "2089", amount)
	assertDecimal(t, "0.2088", rate.Round(4)) // over 10005 buy basis
}

func TestAccumZeroPolicy(t *testing.T) {
	_, rate := Accum(d("0"), replay.NewAggregate())
	assertDecimal(t, "0", rate)
}

func TestDayFloatWithYesterdayClose(t *testing.T) {
	amount, rate := DayFloat(DayFloatInput{
		MarketValue:    d("6000"),
		YesterdayValue: d("5500"),
		TodayBuys:      d("100"),
		TodaySells:     d("200"),
	})
	// 6000 - 5500 + 200 - 100 = 600, over 5500 + 100.
	assertDecimal(t, "600", amount)
	assertDecimal(t, "0.1071", rate.Round(4))
}

func TestDayFloatOpenedToday(t *testing.T) {
	amount, rate := DayFloat(DayFloatInput{
		MarketValue:    d("1000"),
		YesterdayValue: d("0"),
		TodayBuys:      d("1000"),
		TodaySells:     d("0"),
		Price:          d("10"),
		HoldCost:       d("9"),
		Shares:         d("100"),
	})
	// (10 - 9) x 100 - 1000 = -900, over today's buys.
	assertDecimal(t, "-900", amount)
	assertDecimal(t, "-0.9", rate)
}

func TestDayFloatOpenedTodayZeroPolicy(t *testing.T) {
	amount, rate := DayFloat(DayFloatInput{
		MarketValue: d("0"),
		Price:       d("10"),
		HoldCost:    d("10"),
		Shares:      d("0"),
	})
	assertDecimal(t, "0", amount)
	assertDecimal(t, "0", rate)
}
