package types

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type TradeResult struct {
	// Count of all round trips (a buy followed by its sell).
	NumberOfRoundTrips int `yaml:"number_of_round_trips"`
	// Count of round trips with positive realized PnL.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of round trips with negative realized PnL.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Win rate over all round trips.
	WinRate float64 `yaml:"win_rate"`
}

type TradeFees struct {
	// Fees charged on buys, denominated in asset units.
	BuyFeesAsset float64 `yaml:"buy_fees_asset"`
	// Fees charged on sells, denominated in quote currency.
	SellFeesQuote float64 `yaml:"sell_fees_quote"`
}

// SummaryStats describes the outcome of one simulation run.
type SummaryStats struct {
	// ID is the unique identifier for this run.
	ID string `yaml:"id"`
	// Timestamp is when the run was executed.
	Timestamp time.Time `yaml:"timestamp"`
	// Pair of the simulated asset.
	Pair string `yaml:"pair"`
	// Timeframe of the loaded series, in minutes. May differ from the
	// requested timeframe when a fallback file was substituted.
	Timeframe int `yaml:"timeframe"`
	// Strategy is the name of the strategy variant that produced the run.
	Strategy string `yaml:"strategy"`
	// DataStart and DataEnd bound the series used for the run.
	DataStart time.Time `yaml:"data_start"`
	DataEnd   time.Time `yaml:"data_end"`

	StartingCash float64 `yaml:"starting_cash"`
	FinalBalance float64 `yaml:"final_balance"`
	// NetReturnPercent is the percent change from starting cash to final
	// balance.
	NetReturnPercent float64 `yaml:"net_return_percent"`
	// RealizedPnL is the summed realized profit of all round trips, net of
	// fees on both legs.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// BuyAndHoldPnL is the profit of buying at the first close and holding
	// to the last close, for comparison.
	BuyAndHoldPnL float64 `yaml:"buy_and_hold_pnl"`

	TradeResult TradeResult `yaml:"trade_result"`
	Fees        TradeFees   `yaml:"fees"`
}

// RoundTripPnL calculates the realized profit of one buy/sell pair, net of
// fees on both legs. The buy fee is charged in asset units against the
// quantity, the sell fee in quote currency against the gross proceeds.
func RoundTripPnL(buy, sell TradeEvent) float64 {
	buyPrice := decimal.NewFromFloat(buy.Price)
	cost := decimal.NewFromFloat(buy.Amount).Add(decimal.NewFromFloat(buy.Fee)).Mul(buyPrice)
	net := decimal.NewFromFloat(sell.Amount).
		Mul(decimal.NewFromFloat(sell.Price)).
		Sub(decimal.NewFromFloat(sell.Fee))

	result, _ := net.Sub(cost).Float64()

	return result
}

// NewTradeResult summarizes the round trips of a trade log. The final event
// of a liquidated run is a sell like any other, so every buy has a matching
// sell.
func NewTradeResult(log TradeLog) TradeResult {
	result := TradeResult{}

	for i := 0; i+1 < len(log); i += 2 {
		pnl := RoundTripPnL(log[i], log[i+1])
		result.NumberOfRoundTrips++

		switch {
		case pnl > 0:
			result.NumberOfWinningTrades++
		case pnl < 0:
			result.NumberOfLosingTrades++
		}
	}

	if result.NumberOfRoundTrips > 0 {
		result.WinRate = float64(result.NumberOfWinningTrades) / float64(result.NumberOfRoundTrips)
	}

	return result
}

// NewTradeFees sums the fees of a trade log per denomination.
func NewTradeFees(log TradeLog) TradeFees {
	fees := TradeFees{}

	for _, e := range log {
		if e.Side == TradeSideBuy {
			fees.BuyFeesAsset += e.Fee
		} else {
			fees.SellFeesQuote += e.Fee
		}
	}

	return fees
}

// WriteSummaryStats serializes the stats to YAML at the given path.
func WriteSummaryStats(path string, stats SummaryStats) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal summary stats to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary stats to file: %w", err)
	}

	return nil
}
