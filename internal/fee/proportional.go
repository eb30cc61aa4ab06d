package fee

// Proportional charges a flat percentage of the gross amount on every trade.
type Proportional struct {
	percent float64
}

// NewProportional creates a proportional schedule charging the given percent
// per trade (0.2 means 0.2%).
func NewProportional(percent float64) Schedule {
	return &Proportional{percent: percent}
}

// Multiplier returns 1 - percent/100.
func (p *Proportional) Multiplier() float64 {
	return 1 - p.percent/100
}

// On returns gross * percent/100.
func (p *Proportional) On(gross float64) float64 {
	return gross * p.percent / 100
}

// Name returns the schedule name.
func (p *Proportional) Name() string {
	return string(ModeProportional)
}
