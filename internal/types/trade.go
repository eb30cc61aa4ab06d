package types

import "time"

type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeEvent is a single entry in the trade log. Events are append-only and
// never mutated after creation.
type TradeEvent struct {
	Side      TradeSide `csv:"type" yaml:"type"`
	Timestamp int64     `csv:"timestamp" yaml:"timestamp"`
	Price     float64   `csv:"price" yaml:"price"`
	// Amount is the asset quantity transacted.
	Amount float64 `csv:"amount" yaml:"amount"`
	// Fee is the absolute fee charged for this trade. For buys it is
	// denominated in asset units, for sells in quote currency, matching the
	// fee application in the simulation. Zero when fees are disabled.
	Fee float64 `csv:"fee" yaml:"fee"`
}

// Time returns the event timestamp as a UTC time.
func (e TradeEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// TradeLog is the chronological sequence of trade events produced by one
// simulation run. Sides strictly alternate, starting with a buy.
type TradeLog []TradeEvent

// IsAlternating reports whether the log alternates buy/sell starting with a
// buy. An empty log is alternating.
func (l TradeLog) IsAlternating() bool {
	for i, e := range l {
		want := TradeSideBuy
		if i%2 == 1 {
			want = TradeSideSell
		}

		if e.Side != want {
			return false
		}
	}

	return true
}

// Buys returns the number of buy events in the log.
func (l TradeLog) Buys() int {
	n := 0

	for _, e := range l {
		if e.Side == TradeSideBuy {
			n++
		}
	}

	return n
}

// Sells returns the number of sell events in the log.
func (l TradeLog) Sells() int {
	return len(l) - l.Buys()
}

// Position is the mutable holdings state of a simulation run. Cash and
// Quantity are mutually exclusive: the simulation never holds both a cash
// balance and an open position at the same time.
type Position struct {
	Cash     float64
	Quantity float64
}

// IsFlat reports whether no position is held.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// IsHolding reports whether an asset position is open.
func (p Position) IsHolding() bool {
	return p.Quantity > 0
}
