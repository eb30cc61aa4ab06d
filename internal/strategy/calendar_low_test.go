package strategy

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/marlin-quant/dipsim/internal/fee"
	"github.com/marlin-quant/dipsim/internal/types"
)

type CalendarLowTestSuite struct {
	suite.Suite
	sim Simulator
}

func (suite *CalendarLowTestSuite) SetupTest() {
	suite.sim = NewCalendarLow()
}

func TestCalendarLowSuite(t *testing.T) {
	suite.Run(t, new(CalendarLowTestSuite))
}

// A new low under the previous completed 3-day window low triggers the buy,
// and the first subsequent high at or above the floor triggers the sell.
func (suite *CalendarLowTestSuite) TestBuyOnNewLowSellOnFloor() {
	lows := []float64{10, 9, 8, 7, 10, 8, 5, 12, 14, 16}
	highs := []float64{11, 10, 9, 8, 11, 9, 5.3, 5.6, 14.5, 16.5}
	closes := []float64{10.5, 9.5, 8.5, 7.5, 10.5, 8.5, 5.1, 5.5, 14.2, 16.2}
	bars := dailyBars(lows, highs, closes)

	// Window low of days 3-5 is 7; day 6's low of 5 undercuts it.
	log, balance, err := suite.sim.Simulate(bars, noFeeParams(3, 10, 0))
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)

	buy := log[0]
	suite.Equal(types.TradeSideBuy, buy.Side)
	suite.Equal(bars[6].Timestamp, buy.Timestamp)
	suite.Equal(5.0, buy.Price)
	suite.InDelta(200.0, buy.Amount, 1e-9)
	suite.Zero(buy.Fee)

	// Floor is 5 * 1.10 = 5.5; day 7 is the first high to reach it.
	sell := log[1]
	suite.Equal(types.TradeSideSell, sell.Side)
	suite.Equal(bars[7].Timestamp, sell.Timestamp)
	suite.Equal(5.6, sell.Price)
	suite.InDelta(200.0, sell.Amount, 1e-9)

	suite.InDelta(1120.0, balance, 1e-9)
}

// A strictly rising series never undercuts a window low.
func (suite *CalendarLowTestSuite) TestNoTradeKeepsBalance() {
	lows := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	highs := []float64{1.5, 2.5, 3.5, 4.5, 5.5, 6.5, 7.5, 8.5}
	closes := []float64{1.2, 2.2, 3.2, 4.2, 5.2, 6.2, 7.2, 8.2}

	log, balance, err := suite.sim.Simulate(dailyBars(lows, highs, closes), noFeeParams(3, 10, 0.5))
	suite.Require().NoError(err)
	suite.Empty(log)
	suite.Equal(1000.0, balance)
}

// When the target is never reached, the open position is liquidated at the
// final record's close and timestamp.
func (suite *CalendarLowTestSuite) TestEndOfDataLiquidation() {
	lows := []float64{10, 9, 8, 7, 10, 8, 5, 6, 7}
	highs := []float64{11, 10, 9, 8, 11, 9, 5.3, 6.4, 7.4}
	closes := []float64{10.5, 9.5, 8.5, 7.5, 10.5, 8.5, 5.1, 6.2, 7.2}
	bars := dailyBars(lows, highs, closes)

	// Buy at 5 on day 6; floor 7.5 is never reached by a high.
	log, balance, err := suite.sim.Simulate(bars, noFeeParams(3, 50, 0))
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)
	suite.True(log.IsAlternating())

	sell := log[1]
	suite.Equal(types.TradeSideSell, sell.Side)
	suite.Equal(bars[len(bars)-1].Timestamp, sell.Timestamp)
	suite.Equal(7.2, sell.Price)
	suite.InDelta(1440.0, balance, 1e-9)
}

// Quantity and fee on a buy follow the documented split: quantity is scaled
// by the fee multiplier and the fee is charged in asset units.
func (suite *CalendarLowTestSuite) TestProportionalFeeOnBuy() {
	lows := []float64{110, 105, 100}
	highs := []float64{112, 107, 102}
	closes := []float64{111, 106, 100}
	bars := dailyBars(lows, highs, closes)

	params := Params{
		StartingCash:     1000,
		LowWindow:        1,
		TargetPercent:    10,
		TolerancePercent: 0,
		Fees:             fee.NewProportional(0.2),
	}

	log, balance, err := suite.sim.Simulate(bars, params)
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)

	buy := log[0]
	suite.Equal(100.0, buy.Price)
	suite.InDelta(9.98, buy.Amount, 1e-9)
	suite.InDelta(0.02, buy.Fee, 1e-9)

	// No high reaches the 110 floor, so the position liquidates at the
	// final close of 100. Money conservation: the balance equals the gross
	// proceeds scaled by the fee multiplier.
	sell := log[1]
	gross := sell.Amount * sell.Price
	suite.InDelta(gross*0.002, sell.Fee, 1e-9)
	suite.InDelta(gross*0.998, balance, 1e-9)
	suite.InDelta(996.004, balance, 1e-9)
}

// Enabling fees never increases the final balance.
func (suite *CalendarLowTestSuite) TestFeeMonotonicity() {
	lows := []float64{10, 9, 8, 7, 10, 8, 5, 12, 14, 16}
	highs := []float64{11, 10, 9, 8, 11, 9, 5.3, 5.6, 14.5, 16.5}
	closes := []float64{10.5, 9.5, 8.5, 7.5, 10.5, 8.5, 5.1, 5.5, 14.2, 16.2}
	bars := dailyBars(lows, highs, closes)

	withoutFees := noFeeParams(3, 10, 0)
	withFees := withoutFees
	withFees.Fees = fee.NewProportional(0.2)

	_, balanceNoFees, err := suite.sim.Simulate(bars, withoutFees)
	suite.Require().NoError(err)

	_, balanceFees, err := suite.sim.Simulate(bars, withFees)
	suite.Require().NoError(err)

	suite.LessOrEqual(balanceFees, balanceNoFees)
}

// Calendar days with no data are wait states: the window-low reference
// survives a gap in the series.
func (suite *CalendarLowTestSuite) TestGapDaysWait() {
	mkBar := func(dayOffset int64, low, high, close float64) types.Bar {
		return types.Bar{
			Timestamp: (baseDay + dayOffset) * types.SecondsPerDay,
			Open:      close,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1,
			Trades:    1,
		}
	}

	bars := []types.Bar{
		mkBar(0, 10, 10.5, 10.2),
		mkBar(1, 9, 9.5, 9.2),
		// Days 2-4 have no data.
		mkBar(5, 8, 8.4, 8.2),
		mkBar(6, 8.5, 9, 8.9),
	}

	// The reference low of 9 set on day 2 carries through the gap; day 5's
	// low of 8 undercuts it.
	log, _, err := suite.sim.Simulate(bars, noFeeParams(2, 10, 0))
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)
	suite.Equal(types.TradeSideBuy, log[0].Side)
	suite.Equal(8.0, log[0].Price)
	suite.Equal(bars[2].Timestamp, log[0].Timestamp)

	// Floor 8.8; day 6's high of 9 reaches it.
	suite.Equal(9.0, log[1].Price)
	suite.Equal(bars[3].Timestamp, log[1].Timestamp)
}

// With several rows per day, the buy fills on the row achieving the day's
// low and the sell may fill later the same day.
func (suite *CalendarLowTestSuite) TestIntradayBuyAndSell() {
	day2 := (baseDay + 2) * types.SecondsPerDay

	bars := []types.Bar{
		{Timestamp: baseDay * types.SecondsPerDay, Open: 7.2, High: 7.5, Low: 7, Close: 7.2, Volume: 1, Trades: 1},
		{Timestamp: (baseDay + 1) * types.SecondsPerDay, Open: 6.2, High: 6.5, Low: 6, Close: 6.2, Volume: 1, Trades: 1},
		{Timestamp: day2 + 36000, Open: 5.1, High: 5.2, Low: 5, Close: 5.1, Volume: 1, Trades: 1},
		{Timestamp: day2 + 39600, Open: 5.5, High: 6, Low: 5.4, Close: 5.9, Volume: 1, Trades: 1},
	}

	log, balance, err := suite.sim.Simulate(bars, noFeeParams(1, 10, 0))
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)

	suite.Equal(bars[2].Timestamp, log[0].Timestamp)
	suite.Equal(5.0, log[0].Price)

	suite.Equal(bars[3].Timestamp, log[1].Timestamp)
	suite.Equal(6.0, log[1].Price)
	suite.InDelta(1200.0, balance, 1e-9)
}

// A fresh window must complete after a sell before the next buy can trigger.
func (suite *CalendarLowTestSuite) TestReferenceResetAfterSell() {
	// Day 6 buys at 5, day 7 sells at 5.6. Day 8's low of 4 would undercut
	// any stale reference, but no window has completed since the sell, so
	// the first possible re-entry is day 9 against day 8's window low.
	lows := []float64{10, 9, 8, 7, 10, 8, 5, 5.2, 4, 3}
	highs := []float64{11, 10, 9, 8, 11, 9, 5.3, 5.6, 4.5, 3.5}
	closes := []float64{10.5, 9.5, 8.5, 7.5, 10.5, 8.5, 5.1, 5.5, 4.2, 3.2}
	bars := dailyBars(lows, highs, closes)

	log, _, err := suite.sim.Simulate(bars, noFeeParams(3, 10, 0))
	suite.Require().NoError(err)
	suite.Require().Len(log, 4)

	suite.Equal(bars[6].Timestamp, log[0].Timestamp)
	suite.Equal(bars[7].Timestamp, log[1].Timestamp)

	// Re-entry happens on day 9 at 3, not on day 8.
	suite.Equal(types.TradeSideBuy, log[2].Side)
	suite.Equal(bars[9].Timestamp, log[2].Timestamp)
	suite.Equal(3.0, log[2].Price)

	// Nothing after day 9 reaches the floor, so the run liquidates at the
	// last close.
	suite.Equal(types.TradeSideSell, log[3].Side)
	suite.Equal(bars[9].Timestamp, log[3].Timestamp)
	suite.Equal(3.2, log[3].Price)
}
