package fee

// Zero implements Schedule with no fees.
type Zero struct{}

// NewZero creates a schedule that charges nothing.
func NewZero() Schedule {
	return &Zero{}
}

// Multiplier returns 1.
func (z *Zero) Multiplier() float64 {
	return 1.0
}

// On returns 0 for any gross amount.
func (z *Zero) On(gross float64) float64 {
	return 0.0
}

// Name returns the schedule name.
func (z *Zero) Name() string {
	return string(ModeZero)
}
