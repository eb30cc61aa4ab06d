// Package datasource loads and validates historical OHLCVT series from CSV
// files laid out as {pair}_{timeframe}.csv under a configured root directory.
package datasource

import (
	"github.com/marlin-quant/dipsim/internal/types"
)

// Resolution describes the data file chosen for a (pair, timeframe) request.
type Resolution struct {
	// Pair is the requested asset pair.
	Pair string
	// Timeframe is the requested bucket size in minutes.
	Timeframe int
	// EffectiveTimeframe is the bucket size of the file actually chosen.
	// It differs from Timeframe when a fallback file was substituted.
	EffectiveTimeframe int
	// Path is the chosen CSV file.
	Path string
	// Fallback reports whether a different timeframe was substituted.
	Fallback bool
	// AvailableTimeframes lists every timeframe found for the pair, sorted
	// ascending. Only populated on fallback.
	AvailableTimeframes []int
}

// DataSource resolves and loads validated, time-ordered bar series.
type DataSource interface {
	// Resolve locates the data file for the pair and timeframe, applying
	// the fallback policy when the exact timeframe is unavailable.
	Resolve(pair string, timeframe int) (Resolution, error)
	// Ingest loads and validates the resolved file. It must be called
	// before Count or ReadAll.
	Ingest(res Resolution) error
	// Count returns the number of validated rows.
	Count() (int, error)
	// ReadAll iterates the validated rows in ascending timestamp order.
	ReadAll() func(yield func(types.Bar, error) bool)
	// Close releases the underlying resources.
	Close() error
}
