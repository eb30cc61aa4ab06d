package types

import "time"

// SecondsPerDay is the length of a calendar day in Unix seconds.
const SecondsPerDay = 86400

// Bar is a single OHLCVT record for one time bucket.
type Bar struct {
	// Timestamp is the bucket open time in Unix epoch seconds. It is the
	// ordering key for a series.
	Timestamp int64   `csv:"timestamp" yaml:"timestamp"`
	Open      float64 `csv:"open" yaml:"open"`
	High      float64 `csv:"high" yaml:"high"`
	Low       float64 `csv:"low" yaml:"low"`
	Close     float64 `csv:"close" yaml:"close"`
	Volume    float64 `csv:"volume" yaml:"volume"`
	// Trades is the number of trades aggregated into this bucket.
	Trades int64 `csv:"trades" yaml:"trades"`
}

// Time returns the bar timestamp as a UTC time.
func (b Bar) Time() time.Time {
	return time.Unix(b.Timestamp, 0).UTC()
}

// Day returns the UTC calendar day index of the bar (days since the Unix
// epoch). Bars sharing a Day value fall on the same calendar date.
func (b Bar) Day() int64 {
	return b.Timestamp / SecondsPerDay
}
