package writer

import (
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/marlin-quant/dipsim/internal/types"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// TradeLogWriter exports a trade log to a CSV file.
type TradeLogWriter struct{}

// NewTradeLogWriter creates a new TradeLogWriter.
func NewTradeLogWriter() *TradeLogWriter {
	return &TradeLogWriter{}
}

// Write serializes the trade log to the given path. Parent directories are
// created as needed. An empty log still produces a file with the header row.
func (w *TradeLogWriter) Write(path string, log types.TradeLog) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to create output directory %s", dir)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to create trade log file %s", path)
	}
	defer file.Close()

	// gocsv refuses to marshal a nil slice, but an empty trade log is a
	// valid result and should still yield a header-only file.
	events := []types.TradeEvent(log)
	if events == nil {
		events = []types.TradeEvent{}
	}

	if err := gocsv.MarshalFile(&events, file); err != nil {
		return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to write trade log to %s", path)
	}

	return nil
}
