// Package engine orchestrates a simulation run: configuration, data loading,
// strategy execution, statistics, and result export.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marlin-quant/dipsim/internal/datasource"
	"github.com/marlin-quant/dipsim/internal/fee"
	"github.com/marlin-quant/dipsim/internal/logger"
	"github.com/marlin-quant/dipsim/internal/strategy"
	"github.com/marlin-quant/dipsim/internal/types"
	"github.com/marlin-quant/dipsim/internal/version"
	"github.com/marlin-quant/dipsim/internal/writer"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// Result is the outcome of one simulation run.
type Result struct {
	// Resolution describes the data file the run was fed from.
	Resolution datasource.Resolution
	// Rows is the number of bars the strategy walked, after clipping.
	Rows int
	// DataStart and DataEnd bound the walked series.
	DataStart time.Time
	DataEnd   time.Time

	TradeLog     types.TradeLog
	FinalBalance float64
	Stats        types.SummaryStats
}

// Engine runs one configured simulation from data loading through export.
type Engine struct {
	config Config
	log    *logger.Logger
	fees   fee.Schedule
	sim    strategy.Simulator
}

// New validates the configuration and assembles an engine for it.
func New(config Config, log *logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.EngineVersion != "" {
		if err := version.CheckCompatibility(version.GetVersion(), config.EngineVersion); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeVersionMismatch, err,
				"config requires engine version %s but build is %s", config.EngineVersion, version.GetVersion())
		}
	}

	sim, err := strategy.New(config.Strategy)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config: config,
		log:    log,
		fees:   fee.ForConfig(config.UseFee, config.FeePercent),
		sim:    sim,
	}, nil
}

// Run executes the simulation and returns its result. Export targets
// configured via OutputLogPath and ResultsDir are written before returning.
func (e *Engine) Run() (*Result, error) {
	source, err := datasource.New(e.config.DataRoot, e.log)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	res, err := source.Resolve(e.config.Pair, e.config.Timeframe)
	if err != nil {
		return nil, err
	}

	if err := source.Ingest(res); err != nil {
		return nil, err
	}

	bars, err := e.loadBars(source, res)
	if err != nil {
		return nil, err
	}

	bars, err = e.clipToRange(bars)
	if err != nil {
		return nil, err
	}

	e.log.Info("starting simulation",
		zap.String("pair", res.Pair),
		zap.String("strategy", e.sim.Name()),
		zap.Int("bars", len(bars)),
		zap.String("fees", e.fees.Name()),
	)

	params := strategy.Params{
		StartingCash:     e.config.StartingCash,
		LowWindow:        e.config.LowWindow,
		TargetPercent:    e.config.TargetPercent,
		TolerancePercent: e.config.TolerancePercent,
		Fees:             e.fees,
	}

	tradeLog, balance, err := e.sim.Simulate(bars, params)
	if err != nil {
		return nil, err
	}

	stats := e.buildStats(res, bars, tradeLog, balance)

	if err := e.export(tradeLog, stats); err != nil {
		return nil, err
	}

	return &Result{
		Resolution:   res,
		Rows:         len(bars),
		DataStart:    bars[0].Time(),
		DataEnd:      bars[len(bars)-1].Time(),
		TradeLog:     tradeLog,
		FinalBalance: balance,
		Stats:        stats,
	}, nil
}

// loadBars drains the datasource into memory, reporting progress.
func (e *Engine) loadBars(source datasource.DataSource, res datasource.Resolution) ([]types.Bar, error) {
	count, err := source.Count()
	if err != nil {
		return nil, err
	}

	bar := progressbar.Default(int64(count))
	bar.Describe(fmt.Sprintf("Loading %s", filepath.Base(res.Path)))

	bars := make([]types.Bar, 0, count)

	for b, err := range source.ReadAll() {
		if err != nil {
			return nil, err
		}

		bars = append(bars, b)
		_ = bar.Add(1)
	}

	_ = bar.Finish()

	return bars, nil
}

// clipToRange restricts the series to the configured time bounds, if any.
func (e *Engine) clipToRange(bars []types.Bar) ([]types.Bar, error) {
	start, hasStart := unwrap(e.config.StartTime)
	end, hasEnd := unwrap(e.config.EndTime)

	if hasStart || hasEnd {
		clipped := bars[:0:0]

		for _, b := range bars {
			t := b.Time()
			if hasStart && t.Before(start) {
				continue
			}

			if hasEnd && t.After(end) {
				continue
			}

			clipped = append(clipped, b)
		}

		if len(bars) > len(clipped) {
			e.log.Warn("clipped bars outside configured time range",
				zap.Int("dropped", len(bars)-len(clipped)),
				zap.Int("remaining", len(clipped)),
			)
		}

		bars = clipped
	}

	if len(bars) == 0 {
		return nil, errors.New(errors.ErrCodeNoDataInRange, "no data within the configured time range")
	}

	return bars, nil
}

func unwrap(opt optional.Option[time.Time]) (time.Time, bool) {
	if opt.IsNone() {
		return time.Time{}, false
	}

	return opt.Unwrap(), true
}

// buildStats summarizes the run, including a buy-and-hold comparison over the
// same series.
func (e *Engine) buildStats(res datasource.Resolution, bars []types.Bar, tradeLog types.TradeLog, balance float64) types.SummaryStats {
	realized := decimal.Zero
	for i := 0; i+1 < len(tradeLog); i += 2 {
		realized = realized.Add(decimal.NewFromFloat(types.RoundTripPnL(tradeLog[i], tradeLog[i+1])))
	}

	realizedPnL, _ := realized.Float64()

	netReturn := 0.0
	if e.config.StartingCash > 0 {
		netReturn = (balance - e.config.StartingCash) / e.config.StartingCash * 100
	}

	buyAndHold := 0.0
	if first := bars[0].Close; first > 0 {
		growth := decimal.NewFromFloat(bars[len(bars)-1].Close).
			Div(decimal.NewFromFloat(first)).
			Sub(decimal.NewFromInt(1))
		buyAndHold, _ = decimal.NewFromFloat(e.config.StartingCash).Mul(growth).Float64()
	}

	return types.SummaryStats{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		Pair:             res.Pair,
		Timeframe:        res.EffectiveTimeframe,
		Strategy:         e.sim.Name(),
		DataStart:        bars[0].Time(),
		DataEnd:          bars[len(bars)-1].Time(),
		StartingCash:     e.config.StartingCash,
		FinalBalance:     balance,
		NetReturnPercent: netReturn,
		RealizedPnL:      realizedPnL,
		BuyAndHoldPnL:    buyAndHold,
		TradeResult:      types.NewTradeResult(tradeLog),
		Fees:             types.NewTradeFees(tradeLog),
	}
}

// export writes the configured run artifacts.
func (e *Engine) export(tradeLog types.TradeLog, stats types.SummaryStats) error {
	if e.config.OutputLogPath != "" {
		if err := writer.NewTradeLogWriter().Write(e.config.OutputLogPath, tradeLog); err != nil {
			return err
		}

		e.log.Info("wrote trade log", zap.String("path", e.config.OutputLogPath))
	}

	if e.config.ResultsDir != "" {
		if err := os.MkdirAll(e.config.ResultsDir, 0755); err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to create results directory %s", e.config.ResultsDir)
		}

		path := filepath.Join(e.config.ResultsDir, fmt.Sprintf("%s_%s.yaml", stats.Pair, stats.ID))
		if err := types.WriteSummaryStats(path, stats); err != nil {
			return errors.Wrap(errors.ErrCodeExportFailed, "failed to write summary stats", err)
		}

		e.log.Info("wrote summary stats", zap.String("path", path))
	}

	return nil
}
