// Package strategy contains the simulation core: stateful walks over a
// historical bar series that detect buy signals from a rolling low-price
// window and search forward for a qualifying sell.
package strategy

import (
	"github.com/go-playground/validator/v10"

	"github.com/marlin-quant/dipsim/internal/fee"
	"github.com/marlin-quant/dipsim/internal/types"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// Variant identifies a selectable strategy implementation.
type Variant string

const (
	// VariantCalendarLow walks the series at calendar-day granularity and
	// buys when a day's low undercuts the previous completed look-back
	// window's low.
	VariantCalendarLow Variant = "calendar-low"
	// VariantIndexLow walks the series row by row and buys when a row's low
	// equals the minimum low of the preceding window of rows.
	VariantIndexLow Variant = "index-low"
)

// AllVariants lists every selectable variant.
var AllVariants = []Variant{
	VariantCalendarLow,
	VariantIndexLow,
}

// Params are the strategy inputs for one simulation run.
type Params struct {
	// StartingCash is the initial quote-currency balance.
	StartingCash float64 `validate:"gte=0"`
	// LowWindow is the look-back window size: calendar days for the
	// calendar-low variant, rows for the index-low variant.
	LowWindow int `validate:"gte=1"`
	// TargetPercent is the desired gain that opens the sell search.
	TargetPercent float64
	// TolerancePercent widens the acceptable band around the target.
	TolerancePercent float64 `validate:"gte=0"`
	// Fees is the fee schedule applied to every fill.
	Fees fee.Schedule `validate:"required"`
}

// Validate checks the simulation preconditions.
func (p Params) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid strategy parameters", err)
	}

	return nil
}

// Simulator runs one strategy over a bar series.
//
// The bars must be sorted by non-decreasing timestamp; the simulator does not
// re-sort. Simulators are pure: identical inputs produce identical trade logs
// and balances, and no state survives a call.
type Simulator interface {
	// Simulate walks the series and returns the trade log and the final
	// cash balance.
	Simulate(bars []types.Bar, params Params) (types.TradeLog, float64, error)
	// Name returns the variant name.
	Name() string
}

// New returns the simulator for the given variant.
func New(variant Variant) (Simulator, error) {
	switch variant {
	case VariantCalendarLow:
		return NewCalendarLow(), nil
	case VariantIndexLow:
		return NewIndexLow(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidStrategy, "unknown strategy variant: %s", variant)
	}
}

// ParseVariant converts a string flag value into a Variant.
func ParseVariant(s string) (Variant, error) {
	for _, v := range AllVariants {
		if string(v) == s {
			return v, nil
		}
	}

	return "", errors.Newf(errors.ErrCodeInvalidStrategy, "unknown strategy variant: %s", s)
}
