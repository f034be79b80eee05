package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parkerwe/hindcast/internal/allocator"
	"github.com/parkerwe/hindcast/internal/backtest"
	"github.com/parkerwe/hindcast/internal/config"
	"github.com/parkerwe/hindcast/internal/llm"
	llmfactory "github.com/parkerwe/hindcast/internal/llm/factory"
	"github.com/parkerwe/hindcast/internal/logger"
	"github.com/parkerwe/hindcast/internal/marketdata"
	"github.com/parkerwe/hindcast/internal/metrics"
	"github.com/parkerwe/hindcast/internal/storage/archive"
	"github.com/parkerwe/hindcast/internal/strategy"
	stratfactory "github.com/parkerwe/hindcast/internal/strategy/factory"
)

var (
	backtestSymbols string
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
	backtestQuiet   bool
	backtestSummary bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run a strategy backtest",
	Long:  "Replay a strategy against historical data and print the performance report as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbols, "symbols", "", "Comma-separated symbols (overrides config)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "Starting capital (overrides config)")
	backtestCmd.Flags().BoolVar(&backtestQuiet, "quiet", false, "Disable the progress bar")
	backtestCmd.Flags().BoolVar(&backtestSummary, "summary", false, "Generate an LLM summary of the report")

	rootCmd.AddCommand(backtestCmd)
}

// loadConfig reads the config file or falls back to defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	log.Warn("no config file specified, using defaults")
	return config.Defaults(), nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	// Flag overrides
	if len(args) == 1 {
		cfg.Backtest.Strategy.Name = args[0]
	}
	if backtestSymbols != "" {
		cfg.Backtest.Symbols = strings.Split(backtestSymbols, ",")
	}
	if backtestFrom != "" {
		cfg.Backtest.StartDate = backtestFrom
	}
	if backtestTo != "" {
		cfg.Backtest.EndDate = backtestTo
	}
	if backtestCapital > 0 {
		cfg.Backtest.InitialCapital = backtestCapital
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	start, end, err := cfg.Backtest.DateRange()
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	if cfg.Metrics.Enabled {
		serveMetrics(cfg.Metrics, reg, log)
	}

	source := marketdata.NewCSV(cfg.Data.Dir)

	strat, err := stratfactory.New(cfg.Backtest.Strategy.Name, strategy.Params(cfg.Backtest.Strategy.Params))
	if err != nil {
		return fmt.Errorf("building strategy: %w", err)
	}

	var alloc *allocator.Allocator
	if cfg.Backtest.Allocation.Enabled {
		alloc, err = allocator.New(allocatorConfig(cfg.Backtest.Allocation), log)
		if err != nil {
			return fmt.Errorf("building allocator: %w", err)
		}
	}

	bt, err := backtest.New(backtest.Config{
		Symbols:            cfg.Backtest.Symbols,
		Start:              start,
		End:                end,
		InitialCapital:     cfg.Backtest.InitialCapital,
		RebalanceCheckDays: cfg.Backtest.RebalanceCheckDays,
	}, source, strat, alloc, log, reg)
	if err != nil {
		return fmt.Errorf("building backtester: %w", err)
	}

	if !backtestQuiet {
		var bar *progressbar.ProgressBar
		bt.OnProgress(func(p backtest.Progress) {
			if bar == nil {
				bar = progressbar.NewOptions(p.TotalDays,
					progressbar.OptionSetDescription("simulating"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
				)
			}
			bar.Set(p.Day)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := bt.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	rep := backtest.NewReport(res)
	data, err := rep.JSON()
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	fmt.Println(string(data))

	if cfg.Archive.Enabled {
		if err := archiveReport(ctx, cfg.Archive, rep); err != nil {
			log.Error("archiving report failed", zap.Error(err))
		} else {
			log.Info("report archived", zap.String("run_id", rep.RunID))
		}
	}

	if backtestSummary {
		if err := printSummary(ctx, cfg.LLM, rep); err != nil {
			log.Error("report summary failed", zap.Error(err))
		}
	}

	return nil
}

func allocatorConfig(a config.AllocationConfig) allocator.Config {
	return allocator.Config{
		Policy:                allocator.Policy(a.Policy),
		MinPositionWeight:     a.MinPositionWeight,
		MaxPositionWeight:     a.MaxPositionWeight,
		CashReservePct:        a.CashReservePct,
		RebalanceEnabled:      a.Rebalance.Enabled,
		RebalanceThreshold:    a.Rebalance.Threshold,
		RebalanceIntervalDays: a.Rebalance.IntervalDays,
		CustomWeights:         a.CustomWeights,
	}
}

func serveMetrics(cfg config.MetricsConfig, reg *metrics.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{}))

	go func() {
		log.Info("metrics listener starting", zap.String("listen", cfg.Listen))
		if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
			log.Error("metrics listener error", zap.Error(err))
		}
	}()
}

func archiveReport(ctx context.Context, cfg config.ArchiveConfig, rep *backtest.Report) error {
	var backend archive.Storage
	var err error

	switch cfg.Type {
	case "s3":
		backend, err = archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		backend, err = archive.NewLocalFS(cfg.Path)
	}
	if err != nil {
		return err
	}

	return archive.New(backend).Save(ctx, rep)
}

func printSummary(ctx context.Context, cfg config.LLMConfig, rep *backtest.Report) error {
	if cfg.Provider == "" {
		return fmt.Errorf("no llm provider configured")
	}

	provider, err := llmfactory.New(cfg)
	if err != nil {
		return err
	}

	summary, err := llm.NewSummarizer(provider).Summarize(ctx, rep)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Summary ===")
	fmt.Println(summary)
	return nil
}
