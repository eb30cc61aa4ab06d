// Package fee provides the fee schedules applied to simulated trades.
package fee

// Schedule calculates trading fees for simulated fills.
type Schedule interface {
	// Multiplier returns the net multiplier applied to a gross amount,
	// i.e. 1 - percent/100.
	Multiplier() float64
	// On returns the absolute fee charged on a gross amount.
	On(gross float64) float64
	// Name returns the schedule name.
	Name() string
}

type Mode string

const (
	ModeProportional Mode = "proportional"
	ModeZero         Mode = "zero"
)

// ForConfig returns the schedule selected by the fee flags: a proportional
// schedule when fees are enabled, the zero schedule otherwise.
func ForConfig(enabled bool, percent float64) Schedule {
	if enabled {
		return NewProportional(percent)
	}

	return NewZero()
}
