package strategy

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/marlin-quant/dipsim/internal/fee"
	"github.com/marlin-quant/dipsim/internal/types"
)

type IndexLowTestSuite struct {
	suite.Suite
	sim Simulator
}

func (suite *IndexLowTestSuite) SetupTest() {
	suite.sim = NewIndexLow()
}

func TestIndexLowSuite(t *testing.T) {
	suite.Run(t, new(IndexLowTestSuite))
}

// A row whose low equals the preceding window's minimum buys; the sell fills
// on the first close inside the tolerance band.
func (suite *IndexLowTestSuite) TestEqualityBuyAndBandedSell() {
	lows := []float64{10, 9, 8, 8, 8.2, 8.5}
	highs := []float64{10.5, 9.5, 8.5, 8.5, 8.9, 9.0}
	closes := []float64{10.2, 9.2, 8.3, 8.3, 8.6, 8.8}
	bars := dailyBars(lows, highs, closes)

	// Row 3's low of 8 equals min(10, 9, 8). Band for target 10 +/- 0.5 is
	// [8.76, 8.84]; row 5's close of 8.8 is the first inside it (row 4's
	// 8.6 falls short).
	log, balance, err := suite.sim.Simulate(bars, noFeeParams(3, 10, 0.5))
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)

	buy := log[0]
	suite.Equal(types.TradeSideBuy, buy.Side)
	suite.Equal(bars[3].Timestamp, buy.Timestamp)
	suite.Equal(8.0, buy.Price)
	suite.InDelta(125.0, buy.Amount, 1e-9)

	sell := log[1]
	suite.Equal(types.TradeSideSell, sell.Side)
	suite.Equal(bars[5].Timestamp, sell.Timestamp)
	suite.Equal(8.8, sell.Price)
	suite.InDelta(1100.0, balance, 1e-9)
}

// A close above the band does not sell: the band has a ceiling, unlike the
// calendar variant's floor-only rule.
func (suite *IndexLowTestSuite) TestCloseAboveBandIsSkipped() {
	lows := []float64{10, 9, 8, 8, 8.2, 8.5}
	highs := []float64{10.5, 9.5, 8.5, 8.5, 9.5, 9.0}
	// Row 4 closes at 9.5, overshooting the [8.76, 8.84] band; row 5 is
	// back inside it.
	closes := []float64{10.2, 9.2, 8.3, 8.3, 9.5, 8.8}
	bars := dailyBars(lows, highs, closes)

	log, _, err := suite.sim.Simulate(bars, noFeeParams(3, 10, 0.5))
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)
	suite.Equal(bars[5].Timestamp, log[1].Timestamp)
	suite.Equal(8.8, log[1].Price)
}

// The walk resumes at the sell row, which may immediately buy again.
func (suite *IndexLowTestSuite) TestSellRowReentersAsBuyCandidate() {
	lows := []float64{5, 6, 5, 5}
	highs := []float64{6.5, 6.5, 6.5, 6.5}
	closes := []float64{5.5, 6.2, 5.5, 6}
	bars := dailyBars(lows, highs, closes)

	// Row 2 buys at 5 (equals min(5, 6)). Band for target 20 +/- 0 is
	// exactly 6.0; row 3 closes there and sells. The walk resumes at row 3,
	// whose low of 5 equals min(6, 5), so it buys again; end of data then
	// liquidates at row 3's close.
	log, balance, err := suite.sim.Simulate(bars, noFeeParams(2, 20, 0))
	suite.Require().NoError(err)
	suite.Require().Len(log, 4)
	suite.True(log.IsAlternating())

	suite.Equal(bars[2].Timestamp, log[0].Timestamp)
	suite.Equal(5.0, log[0].Price)
	suite.Equal(bars[3].Timestamp, log[1].Timestamp)
	suite.Equal(6.0, log[1].Price)

	suite.Equal(types.TradeSideBuy, log[2].Side)
	suite.Equal(bars[3].Timestamp, log[2].Timestamp)
	suite.Equal(5.0, log[2].Price)

	suite.Equal(types.TradeSideSell, log[3].Side)
	suite.Equal(bars[3].Timestamp, log[3].Timestamp)
	suite.Equal(6.0, log[3].Price)

	// 1000 -> 1200 -> 1440 over the two round trips.
	suite.InDelta(1440.0, balance, 1e-9)
}

// Without an exact equality match the walk never buys.
func (suite *IndexLowTestSuite) TestNoEqualityNoTrade() {
	lows := []float64{10, 9, 8, 7, 6}
	highs := []float64{10.5, 9.5, 8.5, 7.5, 6.5}
	closes := []float64{10.2, 9.2, 8.2, 7.2, 6.2}

	log, balance, err := suite.sim.Simulate(dailyBars(lows, highs, closes), noFeeParams(3, 10, 0.5))
	suite.Require().NoError(err)
	suite.Empty(log)
	suite.Equal(1000.0, balance)
}

// A window longer than the series leaves no rows to evaluate.
func (suite *IndexLowTestSuite) TestWindowLongerThanSeries() {
	lows := []float64{10, 9}
	highs := []float64{10.5, 9.5}
	closes := []float64{10.2, 9.2}

	log, balance, err := suite.sim.Simulate(dailyBars(lows, highs, closes), noFeeParams(5, 10, 0.5))
	suite.Require().NoError(err)
	suite.Empty(log)
	suite.Equal(1000.0, balance)
}

// Fees reduce both the bought quantity and the sell proceeds.
func (suite *IndexLowTestSuite) TestFeesApplied() {
	lows := []float64{10, 9, 8, 8, 8.2, 8.5}
	highs := []float64{10.5, 9.5, 8.5, 8.5, 8.9, 9.0}
	closes := []float64{10.2, 9.2, 8.3, 8.3, 8.6, 8.8}
	bars := dailyBars(lows, highs, closes)

	params := Params{
		StartingCash:     1000,
		LowWindow:        3,
		TargetPercent:    10,
		TolerancePercent: 0.5,
		Fees:             fee.NewProportional(0.2),
	}

	log, balance, err := suite.sim.Simulate(bars, params)
	suite.Require().NoError(err)
	suite.Require().Len(log, 2)

	buy := log[0]
	suite.InDelta(124.75, buy.Amount, 1e-9)
	suite.InDelta(0.25, buy.Fee, 1e-9)

	sell := log[1]
	gross := sell.Amount * sell.Price
	suite.InDelta(gross*0.002, sell.Fee, 1e-9)
	suite.InDelta(gross*0.998, balance, 1e-9)
}
