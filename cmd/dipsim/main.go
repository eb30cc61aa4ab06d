package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/marlin-quant/dipsim/internal/engine"
	"github.com/marlin-quant/dipsim/internal/logger"
	"github.com/marlin-quant/dipsim/internal/strategy"
	"github.com/marlin-quant/dipsim/internal/version"
)

// buildConfig assembles the run configuration from an optional YAML config
// file and the CLI flags. Flags that were set explicitly override the file.
func buildConfig(cmd *cli.Command) (engine.Config, error) {
	config := engine.DefaultConfig()

	fromFile := false

	if path := cmd.String("config"); path != "" {
		loaded, err := engine.LoadConfig(path)
		if err != nil {
			return config, err
		}

		config = loaded
		fromFile = true
	}

	// Without a config file every flag applies, defaults included. With one,
	// only flags the user actually passed override the file.
	applies := func(name string) bool {
		return !fromFile || cmd.IsSet(name)
	}

	if applies("data-root") {
		config.DataRoot = cmd.String("data-root")
	}

	if applies("pair") {
		config.Pair = cmd.String("pair")
	}

	if applies("timeframe") {
		config.Timeframe = int(cmd.Int("timeframe"))
	}

	if applies("starting-amount") {
		config.StartingCash = cmd.Float("starting-amount")
	}

	if applies("low-window") {
		config.LowWindow = int(cmd.Int("low-window"))
	}

	if applies("target-percent") {
		config.TargetPercent = cmd.Float("target-percent")
	}

	if applies("tolerance") {
		config.TolerancePercent = cmd.Float("tolerance")
	}

	if applies("strategy") {
		variant, err := strategy.ParseVariant(cmd.String("strategy"))
		if err != nil {
			return config, err
		}

		config.Strategy = variant
	}

	if applies("use-fee") {
		config.UseFee = cmd.Bool("use-fee")
	}

	if applies("fee-percent") {
		config.FeePercent = cmd.Float("fee-percent")
	}

	if applies("output-log-path") {
		config.OutputLogPath = cmd.String("output-log-path")
	}

	if applies("results-dir") {
		config.ResultsDir = cmd.String("results-dir")
	}

	return config, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewConsoleLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	eng, err := engine.New(config, log)
	if err != nil {
		return err
	}

	result, err := eng.Run()
	if err != nil {
		return err
	}

	printReport(result)

	return nil
}

func printReport(result *engine.Result) {
	if result.Resolution.Fallback {
		fmt.Printf("Timeframe %d unavailable, using %d instead\n",
			result.Resolution.Timeframe, result.Resolution.EffectiveTimeframe)
	}

	fmt.Printf("Data range: %s to %s (%d bars)\n",
		result.DataStart.Format("2006-01-02 15:04:05"),
		result.DataEnd.Format("2006-01-02 15:04:05"),
		result.Rows,
	)

	for _, event := range result.TradeLog {
		fmt.Printf("%-4s %s price=%.4f amount=%.6f fee=%.6f\n",
			event.Side,
			event.Time().Format("2006-01-02 15:04:05"),
			event.Price,
			event.Amount,
			event.Fee,
		)
	}

	stats := result.Stats
	fmt.Printf("Trades: %d (%d round trips, win rate %.2f%%)\n",
		len(result.TradeLog),
		stats.TradeResult.NumberOfRoundTrips,
		stats.TradeResult.WinRate*100,
	)
	fmt.Printf("Realized PnL: %.2f, buy and hold: %.2f\n", stats.RealizedPnL, stats.BuyAndHoldPnL)
	fmt.Printf("Final balance: %.2f (%+.2f%%)\n", result.FinalBalance, stats.NetReturnPercent)
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	config := engine.DefaultConfig()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "dipsim",
		Usage:   "Backtest a buy-the-dip strategy over historical OHLCVT data",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-root",
				Usage:   "Directory containing the {pair}_{timeframe}.csv data files",
				Sources: cli.EnvVars("DATA_ROOT"),
			},
			&cli.StringFlag{
				Name:    "pair",
				Aliases: []string{"p"},
				Usage:   "Asset pair to simulate (e.g. XBTEUR)",
			},
			&cli.IntFlag{
				Name:    "timeframe",
				Aliases: []string{"t"},
				Usage:   "Bucket size in minutes (1, 5, 15, 30, 60, 240, 720 or 1440)",
				Value:   30,
			},
			&cli.FloatFlag{
				Name:    "starting-amount",
				Aliases: []string{"a"},
				Usage:   "Initial quote-currency balance",
			},
			&cli.IntFlag{
				Name:    "low-window",
				Aliases: []string{"w"},
				Usage:   "Look-back window in days (5, 10, 15, 30, 60, 120 or 240)",
			},
			&cli.FloatFlag{
				Name:    "target-percent",
				Aliases: []string{"g"},
				Usage:   "Desired gain percentage that opens the sell search",
			},
			&cli.FloatFlag{
				Name:  "tolerance",
				Usage: "Band widening applied around the target, in percent",
				Value: 0.5,
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: fmt.Sprintf("Strategy variant (%s or %s)", strategy.VariantCalendarLow, strategy.VariantIndexLow),
				Value: string(strategy.VariantCalendarLow),
			},
			&cli.BoolFlag{
				Name:  "use-fee",
				Usage: "Apply the proportional fee schedule to every fill",
			},
			&cli.FloatFlag{
				Name:  "fee-percent",
				Usage: "Proportional fee in percent of notional",
				Value: 0.2,
			},
			&cli.StringFlag{
				Name:    "output-log-path",
				Aliases: []string{"o"},
				Usage:   "Optional CSV file receiving the trade log",
			},
			&cli.StringFlag{
				Name:  "results-dir",
				Usage: "Optional directory receiving the run summary YAML",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Optional YAML config file; explicit flags take precedence",
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the YAML config file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
