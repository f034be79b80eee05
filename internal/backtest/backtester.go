package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parkerwe/hindcast/internal/allocator"
	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/execution"
	"github.com/parkerwe/hindcast/internal/marketdata"
	"github.com/parkerwe/hindcast/internal/metrics"
	"github.com/parkerwe/hindcast/internal/portfolio"
	"github.com/parkerwe/hindcast/internal/strategy"
)

const dateLayout = "2006-01-02"

// Config holds the run parameters for one backtest.
type Config struct {
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64

	// RebalanceCheckDays is how often the rebalancing trigger is re-checked.
	RebalanceCheckDays int
	// ProgressEvery bounds progress reporting to every N simulated days.
	// Zero picks a sensible interval from the timeline length.
	ProgressEvery int
}

// Progress is an advisory notice emitted at a bounded interval during a run.
type Progress struct {
	Pct          float64
	CurrentDate  time.Time
	CurrentValue float64
	Day          int
	TotalDays    int
}

// ProgressFunc receives progress notices. Called from the simulation
// goroutine; must not block.
type ProgressFunc func(Progress)

// Backtester runs one strategy across a symbol universe over a date range.
// The simulation is strictly sequential by trading day; later days depend on
// portfolio state mutated by earlier days.
type Backtester struct {
	cfg     Config
	source  marketdata.Source
	strat   strategy.Strategy
	alloc   *allocator.Allocator
	exec    *execution.Service
	logger  *zap.Logger
	metrics *metrics.Registry

	onProgress ProgressFunc
}

// New creates a backtester. The allocator is optional; without one, sizing
// falls back to the strategy's own helper and no rebalancing is checked.
func New(cfg Config, source marketdata.Source, strat strategy.Strategy, alloc *allocator.Allocator, logger *zap.Logger, reg *metrics.Registry) (*Backtester, error) {
	if source == nil {
		return nil, core.Wrapf(core.ErrConfigInvalid, "data source is required")
	}
	if strat == nil {
		return nil, core.Wrapf(core.ErrConfigInvalid, "strategy is required")
	}
	if err := validateConfig(cfg, source); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	var sizer execution.Sizer
	if alloc != nil {
		sizer = alloc
	} else {
		sizer = execution.StrategySizer{Strategy: strat}
	}

	return &Backtester{
		cfg:     cfg,
		source:  source,
		strat:   strat,
		alloc:   alloc,
		exec:    execution.New(logger, sizer),
		logger:  logger,
		metrics: reg,
	}, nil
}

// OnProgress registers the progress callback. Must be called before Run.
func (b *Backtester) OnProgress(fn ProgressFunc) {
	b.onProgress = fn
}

// validateConfig checks the run parameters before any simulation work. Every
// failure here is terminal for the run.
func validateConfig(cfg Config, source marketdata.Source) error {
	if len(cfg.Symbols) == 0 {
		return core.Wrapf(core.ErrConfigInvalid, "at least one symbol is required")
	}
	for _, sym := range cfg.Symbols {
		if sym == "" {
			return core.Wrapf(core.ErrConfigInvalid, "symbol list contains an empty symbol")
		}
		if !source.SymbolExists(sym) {
			return core.Wrapf(core.ErrSymbolNotFound, "symbol %q not known to the data source", sym)
		}
	}
	if cfg.InitialCapital <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "initial capital must be positive, got %v", cfg.InitialCapital)
	}
	if cfg.Start.IsZero() || cfg.End.IsZero() || cfg.End.Before(cfg.Start) {
		return core.Wrapf(core.ErrConfigInvalid, "date range [%s, %s] is empty", cfg.Start.Format(dateLayout), cfg.End.Format(dateLayout))
	}
	if cfg.RebalanceCheckDays < 0 || cfg.ProgressEvery < 0 {
		return core.Wrapf(core.ErrConfigInvalid, "intervals must not be negative")
	}
	return nil
}

// Run executes the backtest: load data, build the unified timeline, simulate
// each trading day in order, then finalize the report.
func (b *Backtester) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	res, err := b.run(ctx)
	if err != nil {
		b.metrics.RecordBacktest("failed", time.Since(started).Seconds())
		return nil, err
	}

	b.metrics.RecordBacktest("completed", time.Since(started).Seconds())
	return res, nil
}

func (b *Backtester) run(ctx context.Context) (*Result, error) {
	pf, err := portfolio.New(b.cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	pf.Reset()

	series, loaded, err := b.loadData()
	if err != nil {
		return nil, err
	}

	timeline, index := buildTimeline(series)

	res := &Result{
		RunID:           uuid.NewString(),
		Strategy:        b.strat.Name(),
		Symbols:         loaded,
		StartDate:       timeline[0],
		EndDate:         timeline[len(timeline)-1],
		StartingCapital: b.cfg.InitialCapital,
	}

	b.logger.Info("backtest starting",
		zap.String("run_id", res.RunID),
		zap.String("strategy", res.Strategy),
		zap.Int("symbols", len(loaded)),
		zap.Int("trading_days", len(timeline)),
	)

	b.initialAllocation(series, loaded, pf, timeline[0])
	b.simulate(ctx, res, series, loaded, timeline, index, pf)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lastPrices := make(map[string]float64, len(loaded))
	for sym, bars := range series {
		lastPrices[sym] = bars[len(bars)-1].Close
	}
	Finalize(res, pf, lastPrices)

	b.logger.Info("backtest completed",
		zap.String("run_id", res.RunID),
		zap.Float64("ending_value", res.EndingValue),
		zap.Float64("total_return_pct", res.Metrics.TotalReturnPct),
		zap.Int("trades", len(res.Trades)),
	)
	return res, nil
}

// loadData fetches each symbol's bars independently. A symbol that fails is
// dropped with a warning; only a universe-wide failure is fatal.
func (b *Backtester) loadData() (map[string][]core.Bar, []string, error) {
	series := make(map[string][]core.Bar, len(b.cfg.Symbols))
	var loaded []string

	for _, sym := range b.cfg.Symbols {
		bars, err := b.source.HistoricalBars(sym, b.cfg.Start, b.cfg.End)
		if err != nil || len(bars) == 0 {
			b.logger.Warn("dropping symbol without data",
				zap.String("symbol", sym),
				zap.Error(err),
			)
			continue
		}
		series[sym] = bars
		loaded = append(loaded, sym)
	}

	if len(loaded) == 0 {
		return nil, nil, core.Wrapf(core.ErrNoData, "no historical data for any of %d symbols", len(b.cfg.Symbols))
	}
	sort.Strings(loaded)
	return series, loaded, nil
}

// buildTimeline returns the sorted union of all per-symbol dates plus, per
// symbol, a date-to-bar-index map for O(1) lookup.
func buildTimeline(series map[string][]core.Bar) ([]time.Time, map[string]map[string]int) {
	dates := make(map[string]time.Time)
	index := make(map[string]map[string]int, len(series))

	for sym, bars := range series {
		byDate := make(map[string]int, len(bars))
		for i, bar := range bars {
			key := bar.Date.Format(dateLayout)
			byDate[key] = i
			dates[key] = bar.Date
		}
		index[sym] = byDate
	}

	keys := make([]string, 0, len(dates))
	for k := range dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	timeline := make([]time.Time, len(keys))
	for i, k := range keys {
		timeline[i] = dates[k]
	}
	return timeline, index
}

// initialAllocation computes the opening target allocation. An allocator
// failure here is not fatal; the run continues on equal weighting.
func (b *Backtester) initialAllocation(series map[string][]core.Bar, loaded []string, pf *portfolio.Portfolio, date time.Time) {
	if b.alloc == nil {
		return
	}

	openPrices := make(map[string]float64, len(series))
	for sym, bars := range series {
		openPrices[sym] = bars[0].Close
	}

	_, err := b.alloc.Allocate(loaded, b.cfg.InitialCapital, pf, openPrices, date)
	if err == nil {
		return
	}
	b.logger.Warn("initial allocation failed, falling back to equal weight", zap.Error(err))

	cfg := b.alloc.Config()
	cfg.Policy = allocator.PolicyEqualWeight
	fallback, err := allocator.New(cfg, b.logger)
	if err != nil {
		return
	}
	if _, err := fallback.Allocate(loaded, b.cfg.InitialCapital, pf, openPrices, date); err != nil {
		b.logger.Warn("equal-weight fallback allocation failed", zap.Error(err))
	}
}

func (b *Backtester) simulate(ctx context.Context, res *Result, series map[string][]core.Bar, loaded []string, timeline []time.Time, index map[string]map[string]int, pf *portfolio.Portfolio) {
	windows := make(map[string][]core.Bar, len(loaded))
	lastPrice := make(map[string]float64, len(loaded))

	checkEvery := b.cfg.RebalanceCheckDays
	if checkEvery <= 0 {
		checkEvery = 5
	}
	reportEvery := b.cfg.ProgressEvery
	if reportEvery <= 0 {
		reportEvery = len(timeline) / 20
		if reportEvery < 1 {
			reportEvery = 1
		}
	}

	for day, date := range timeline {
		select {
		case <-ctx.Done():
			return
		default:
		}

		key := date.Format(dateLayout)

		// Attach today's bars and carry forward prices for valuation.
		hasBar := make(map[string]bool, len(loaded))
		anyData := false
		for _, sym := range loaded {
			i, ok := index[sym][key]
			if !ok {
				continue
			}
			bar := series[sym][i]
			windows[sym] = append(windows[sym], bar)
			lastPrice[sym] = bar.Close
			hasBar[sym] = true
			anyData = true
			if b.alloc != nil {
				b.alloc.RecordPrice(sym, bar.Close)
			}
		}
		if !anyData {
			continue
		}

		for _, sym := range loaded {
			if len(windows[sym]) == 0 {
				continue
			}

			if !b.source.IsTradeable(sym, date) {
				b.forceLiquidate(res, pf, sym, lastPrice[sym], date)
				continue
			}
			if !hasBar[sym] {
				// Stale window: the carried price is for valuation only.
				continue
			}

			sig, err := b.strat.Evaluate(windows[sym], pf, sym)
			if err != nil {
				b.logger.Debug("strategy evaluation failed",
					zap.String("symbol", sym),
					zap.Time("date", date),
					zap.Error(err),
				)
				continue
			}
			if !sig.Actionable() {
				continue
			}

			res.Signals = append(res.Signals, sig)
			b.metrics.RecordSignal(sig.Strategy, string(sig.Action))
			b.executeSignal(res, pf, sig, lastPrice)
		}

		if b.alloc != nil && day > 0 && day%checkEvery == 0 && b.alloc.ShouldRebalance(date, pf, lastPrice) {
			if _, err := b.alloc.Rebalance(pf, lastPrice, date); err != nil {
				b.logger.Warn("rebalance failed", zap.Time("date", date), zap.Error(err))
			} else {
				b.metrics.RecordRebalance()
				b.logger.Info("rebalance target recomputed", zap.Time("date", date))
			}
		}

		value := pf.TotalValue(lastPrice)
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Date: date, Value: value})
		b.metrics.RecordSimulatedDay()

		if b.onProgress != nil && (day%reportEvery == 0 || day == len(timeline)-1) {
			b.onProgress(Progress{
				Pct:          float64(day+1) / float64(len(timeline)) * 100,
				CurrentDate:  date,
				CurrentValue: value,
				Day:          day + 1,
				TotalDays:    len(timeline),
			})
		}
	}
}

// forceLiquidate closes a position in a symbol that is no longer tradeable,
// selling everything at the best available price.
func (b *Backtester) forceLiquidate(res *Result, pf *portfolio.Portfolio, sym string, price float64, date time.Time) {
	if !pf.HasPosition(sym) || price <= 0 {
		return
	}

	pos := pf.Position(sym)
	if !pf.SellAll(sym, price) {
		return
	}

	res.Trades = append(res.Trades, Trade{
		Symbol: sym,
		Side:   core.ActionSell,
		Shares: pos.Shares,
		Price:  price,
		Value:  pos.Shares * price,
		Date:   date,
		Reason: "symbol no longer tradeable, position liquidated",
		Forced: true,
	})
	b.metrics.RecordTrade(string(core.ActionSell))
	b.logger.Warn("forced liquidation",
		zap.String("symbol", sym),
		zap.Time("date", date),
		zap.Float64("shares", pos.Shares),
		zap.Float64("price", price),
	)
}

func (b *Backtester) executeSignal(res *Result, pf *portfolio.Portfolio, sig core.Signal, lastPrice map[string]float64) {
	fill, err := b.exec.Execute(sig, pf, pf.TotalValue(lastPrice))
	if err != nil {
		b.metrics.RecordExecutionFailure()
		return
	}

	res.Trades = append(res.Trades, Trade{
		Symbol: fill.Symbol,
		Side:   fill.Side,
		Shares: fill.Shares,
		Price:  fill.Price,
		Value:  fill.Value,
		Date:   fill.Date,
		Reason: sig.Reason,
	})
	b.metrics.RecordTrade(string(fill.Side))
}
