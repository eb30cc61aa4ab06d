package strategy

import (
	"math"

	"github.com/marlin-quant/dipsim/internal/types"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// CalendarLowStrategy walks the series one UTC calendar day at a time. Each
// day it compares the day's lowest low against the minimum low of the
// previous completed look-back window; a strict undercut opens a position at
// that low. The sell search then scans forward for the first bar whose high
// reaches the floor price derived from the target gain minus the tolerance.
//
// The buy reference is always the low of a window completed on an earlier
// day, never the window containing the candidate day itself, so a day cannot
// trigger off its own minimum.
type CalendarLowStrategy struct{}

// NewCalendarLow creates the calendar-day variant.
func NewCalendarLow() Simulator {
	return &CalendarLowStrategy{}
}

// Name implements Simulator.
func (s *CalendarLowStrategy) Name() string {
	return string(VariantCalendarLow)
}

// Simulate implements Simulator.
func (s *CalendarLowStrategy) Simulate(bars []types.Bar, params Params) (types.TradeLog, float64, error) {
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
	)

	window := int64(params.LowWindow)
	day := bars[0].Day() + window
	lastDay := bars[n-1].Day()

	// refLow is the minimum low of the most recently completed window.
	// A buy may only trigger against a reference carried over from an
	// earlier day.
	var refLow float64

	haveRef := false

	// cursor marks the earliest row still eligible for window lookups,
	// so rows consumed by a prior trade are never reused.
	cursor := 0

	// lo and hi bound the rows whose day falls in (day-window, day].
	// Timestamps are monotonic, so both pointers only move forward.
	lo, hi := 0, 0

outer:
	for day <= lastDay {
		for lo < n && (bars[lo].Day() <= day-window || lo < cursor) {
			lo++
		}

		if hi < lo {
			hi = lo
		}

		for hi < n && bars[hi].Day() <= day {
			hi++
		}

		if lo == hi {
			// No data anywhere in the look-back window: wait.
			day++
			continue
		}

		windowLow := math.Inf(1)
		todayLow := math.Inf(1)
		buyRow := -1

		for i := lo; i < hi; i++ {
			if bars[i].Low < windowLow {
				windowLow = bars[i].Low
			}

			if bars[i].Day() == day && bars[i].Low < todayLow {
				todayLow = bars[i].Low
				buyRow = i
			}
		}

		if buyRow < 0 {
			// The window has data but the day itself has none: carry the
			// window low forward as the next reference.
			refLow = windowLow
			haveRef = true
			day++

			continue
		}

		if position.IsFlat() && haveRef && todayLow < refLow {
			buyPrice := todayLow
			grossQty := position.Cash / buyPrice
			buyFee := params.Fees.On(grossQty)
			position.Quantity = grossQty * feeMult
			position.Cash = 0

			log = append(log, types.TradeEvent{
				Side:      types.TradeSideBuy,
				Timestamp: bars[buyRow].Timestamp,
				Price:     buyPrice,
				Amount:    position.Quantity,
				Fee:       buyFee,
			})

			// The sell search runs to completion before the day walk
			// resumes. The first row whose high reaches the floor wins.
			floor := buyPrice * (1 + (params.TargetPercent-params.TolerancePercent)/100)
			sold := false

			for j := buyRow + 1; j < n; j++ {
				if bars[j].High < floor {
					continue
				}

				sellPrice := bars[j].High
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
				cursor = j + 1
				day = bars[j].Day() + 1
				// Force a full window recomputation before the next buy
				// can trigger.
				haveRef = false
				sold = true

				break
			}

			if !sold {
				// The target is unreachable for the rest of the series:
				// stop looking for new entries and liquidate below.
				break outer
			}

			continue
		}

		refLow = windowLow
		haveRef = true
		day++
	}

	liquidate(&log, &position, bars[n-1], params, feeMult)

	return log, position.Cash, nil
}

// liquidate closes any open position at the final record's close price,
// applying fees identically to a regular sell.
func liquidate(log *types.TradeLog, position *types.Position, last types.Bar, params Params, feeMult float64) {
	if !position.IsHolding() {
		return
	}

	gross := position.Quantity * last.Close
	sellFee := params.Fees.On(gross)

	*log = append(*log, types.TradeEvent{
		Side:      types.TradeSideSell,
		Timestamp: last.Timestamp,
		Price:     last.Close,
		Amount:    position.Quantity,
		Fee:       sellFee,
	})

	position.Cash = gross * feeMult
	position.Quantity = 0
}
