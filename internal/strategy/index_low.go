package strategy

import (
	"github.com/marlin-quant/dipsim/internal/types"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// IndexLowStrategy walks the series row by row. A row buys when its low
// equals the minimum low of the preceding LowWindow rows, and the sell
// search scans subsequent rows' closes for a price inside the band
// [target-tolerance, target+tolerance] around the target gain.
//
// This is the superseded variant of the original research tool, kept
// selectable side by side with the calendar variant. Its quirks are
// preserved: the equality buy trigger, the banded close-based sell, and the
// walk resuming at (not after) the sell row.
type IndexLowStrategy struct{}

// NewIndexLow creates the row-index variant.
func NewIndexLow() Simulator {
	return &IndexLowStrategy{}
}

// Name implements Simulator.
func (s *IndexLowStrategy) Name() string {
	return string(VariantIndexLow)
}

// Simulate implements Simulator.
func (s *IndexLowStrategy) Simulate(bars []types.Bar, params Params) (types.TradeLog, float64, error) {
	if err := params.Validate(); err != nil {
		return nil, 0, err
	}

	if len(bars) == 0 {
		return nil, 0, errors.New(errors.ErrCodeEmptyData, "record sequence is empty")
	}

	var (
		log      types.TradeLog
		position = types.Position{Cash: params.StartingCash}
		feeMult  = params.Fees.Multiplier()
		n        = len(bars)
		window   = params.LowWindow
	)

	for i := window; i < n; {
		windowLow := bars[i-window].Low
		for k := i - window + 1; k < i; k++ {
			if bars[k].Low < windowLow {
				windowLow = bars[k].Low
			}
		}

		if position.IsFlat() && bars[i].Low == windowLow {
			buyPrice := bars[i].Low
			grossQty := position.Cash / buyPrice
			buyFee := params.Fees.On(grossQty)
			position.Quantity = grossQty * feeMult
			position.Cash = 0

			log = append(log, types.TradeEvent{
				Side:      types.TradeSideBuy,
				Timestamp: bars[i].Timestamp,
				Price:     buyPrice,
				Amount:    position.Quantity,
				Fee:       buyFee,
			})

			minPrice := buyPrice * (1 + (params.TargetPercent-params.TolerancePercent)/100)
			maxPrice := buyPrice * (1 + (params.TargetPercent+params.TolerancePercent)/100)
			sold := false

			for j := i + 1; j < n; j++ {
				sellPrice := bars[j].Close
				if sellPrice < minPrice || sellPrice > maxPrice {
					continue
				}

				gross := position.Quantity * sellPrice
				sellFee := params.Fees.On(gross)

				log = append(log, types.TradeEvent{
					Side:      types.TradeSideSell,
					Timestamp: bars[j].Timestamp,
					Price:     sellPrice,
					Amount:    position.Quantity,
					Fee:       sellFee,
				})

				position.Cash = gross * feeMult
				position.Quantity = 0
				// The walk resumes at the sell row itself, so it is
				// evaluated again as a buy candidate.
				i = j
				sold = true

				break
			}

			if !sold {
				break
			}
		} else {
			i++
		}
	}

	liquidate(&log, &position, bars[n-1], params, feeMult)

	return log, position.Cash, nil
}
