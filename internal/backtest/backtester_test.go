package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parkerwe/hindcast/internal/allocator"
	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/marketdata"
	"github.com/parkerwe/hindcast/internal/portfolio"
	"github.com/parkerwe/hindcast/internal/strategy"
	"github.com/parkerwe/hindcast/internal/strategy/factory"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func barsFor(symbol string, start time.Time, closes ...float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{Symbol: symbol, Date: start.AddDate(0, 0, i), Close: c, Volume: 1000}
	}
	return bars
}

// scripted emits buy/sell signals at fixed window lengths with a fixed size.
// Keeps orchestration tests independent of real strategy math.
type scripted struct {
	size  float64
	buys  map[string][]int
	sells map[string][]int
}

func (s *scripted) Name() string        { return "scripted" }
func (s *scripted) Description() string { return "scripted test strategy" }
func (s *scripted) MinBars() int        { return 1 }
func (s *scripted) Validate() error     { return nil }

func (s *scripted) Evaluate(window []core.Bar, pf *portfolio.Portfolio, symbol string) (core.Signal, error) {
	n := len(window)
	last := window[n-1]
	base := core.Signal{
		Symbol:     symbol,
		Price:      last.Close,
		Date:       last.Date,
		Confidence: 0.5,
		Strategy:   s.Name(),
	}
	for _, at := range s.buys[symbol] {
		if at == n {
			base.Action = core.ActionBuy
			base.Reason = "scripted buy"
			return base, nil
		}
	}
	for _, at := range s.sells[symbol] {
		if at == n {
			base.Action = core.ActionSell
			base.Reason = "scripted sell"
			return base, nil
		}
	}
	return strategy.Hold(s.Name(), symbol, "scripted hold", window), nil
}

func (s *scripted) PositionSize(pf *portfolio.Portfolio, price, portfolioValue float64) float64 {
	return s.size
}

func run(t *testing.T, cfg Config, source marketdata.Source, strat strategy.Strategy, alloc *allocator.Allocator) *Result {
	t.Helper()
	bt, err := New(cfg, source, strat, alloc, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := bt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestRun_FlatSeriesProducesNoTrades(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("FLAT", barsFor("FLAT", day0, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50))

	strat, err := factory.New("ma_crossover", strategy.Params{"short_period": 2, "long_period": 3})
	if err != nil {
		t.Fatal(err)
	}

	res := run(t, Config{
		Symbols:        []string{"FLAT"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 30),
		InitialCapital: 10000,
	}, src, strat, nil)

	if len(res.Trades) != 0 {
		t.Errorf("flat series produced %d trades, want 0", len(res.Trades))
	}
	if res.Metrics.TotalReturnPct != 0 {
		t.Errorf("total return = %v, want 0", res.Metrics.TotalReturnPct)
	}
	if len(res.EquityCurve) != 10 {
		t.Errorf("equity curve has %d points, want one per trading day (10)", len(res.EquityCurve))
	}
	if res.EquityCurve[0].Value != 10000 {
		t.Errorf("equity curve starts at %v, want starting capital", res.EquityCurve[0].Value)
	}
}

func TestRun_ForcedLiquidationOnDelisting(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("DEAD", barsFor("DEAD", day0, 50, 50, 50, 50, 50))
	src.AddBars("LIVE", barsFor("LIVE", day0, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20))
	src.SetListing("DEAD", day0, day0.AddDate(0, 0, 3))

	strat := &scripted{
		size: 10,
		buys: map[string][]int{"DEAD": {1, 5}},
	}

	res := run(t, Config{
		Symbols:        []string{"DEAD", "LIVE"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 30),
		InitialCapital: 10000,
	}, src, strat, nil)

	if len(res.Trades) != 2 {
		t.Fatalf("got %d trades, want buy + forced liquidation", len(res.Trades))
	}
	forced := res.Trades[1]
	if !forced.Forced || forced.Symbol != "DEAD" || forced.Side != core.ActionSell {
		t.Errorf("second trade = %+v, want forced sell of DEAD", forced)
	}
	if forced.Shares != 10 {
		t.Errorf("liquidated %v shares, want the full position of 10", forced.Shares)
	}

	// No signal is evaluated for the symbol once it is no longer tradeable,
	// even though a scripted buy was due at window length 5.
	for _, sig := range res.Signals {
		if sig.Symbol == "DEAD" && sig.Date.After(day0.AddDate(0, 0, 3)) {
			t.Errorf("signal evaluated for delisted symbol on %v", sig.Date)
		}
	}
	deadSignals := 0
	for _, sig := range res.Signals {
		if sig.Symbol == "DEAD" {
			deadSignals++
		}
	}
	if deadSignals != 1 {
		t.Errorf("got %d DEAD signals, want 1", deadSignals)
	}
}

func TestRun_SingleCrossoverBuysOnce(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("X", barsFor("X", day0, 10, 10, 10, 12, 14, 16))

	strat, err := factory.New("ma_crossover", strategy.Params{"short_period": 2, "long_period": 3})
	if err != nil {
		t.Fatal(err)
	}
	alloc, err := allocator.New(allocator.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	res := run(t, Config{
		Symbols:        []string{"X"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 30),
		InitialCapital: 10000,
	}, src, strat, alloc)

	if len(res.Signals) != 1 {
		t.Fatalf("got %d signals, want exactly one buy", len(res.Signals))
	}
	sig := res.Signals[0]
	if sig.Action != core.ActionBuy || sig.Price != 12 {
		t.Errorf("signal = %+v, want buy at 12", sig)
	}
	if len(res.Trades) != 1 || res.Trades[0].Side != core.ActionBuy {
		t.Fatalf("trades = %+v, want one executed buy", res.Trades)
	}
	// 0.8% of initial capital is under the $100 floor, so the buy trades $100.
	if res.Trades[0].Shares != 8 {
		t.Errorf("buy sized to %v shares, want 8 ($100 at price 12)", res.Trades[0].Shares)
	}
}

func TestRun_RoundTripProfit(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("ACME", barsFor("ACME", day0, 100, 100, 100, 120, 120, 120))

	strat := &scripted{
		size:  10,
		buys:  map[string][]int{"ACME": {1}},
		sells: map[string][]int{"ACME": {4}},
	}

	res := run(t, Config{
		Symbols:        []string{"ACME"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 30),
		InitialCapital: 10000,
	}, src, strat, nil)

	if res.EndingValue != 10200 {
		t.Errorf("ending value = %v, want 10200", res.EndingValue)
	}
	if res.Metrics.TotalTrades != 2 {
		t.Errorf("total trades = %d, want 2", res.Metrics.TotalTrades)
	}
	if res.Metrics.WinningTrades != 1 || res.Metrics.LosingTrades != 0 {
		t.Errorf("win/loss = %d/%d, want 1/0", res.Metrics.WinningTrades, res.Metrics.LosingTrades)
	}
	if res.Metrics.WinRate != 100 {
		t.Errorf("win rate = %v, want 100", res.Metrics.WinRate)
	}
	if res.EquityCurve[0].Value != 10000 {
		t.Errorf("equity curve starts at %v, want starting capital", res.EquityCurve[0].Value)
	}
}

func TestRun_AllSymbolsWithoutDataIsFatal(t *testing.T) {
	src := marketdata.NewMemory()
	// Bars exist, but entirely outside the requested range.
	src.AddBars("A", barsFor("A", day0.AddDate(-1, 0, 0), 10, 10))
	src.AddBars("B", barsFor("B", day0.AddDate(-1, 0, 0), 10, 10))

	strat := &scripted{size: 10}
	bt, err := New(Config{
		Symbols:        []string{"A", "B"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 10),
		InitialCapital: 10000,
	}, src, strat, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := bt.Run(context.Background())
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("want ErrNoData, got %v", err)
	}
	if res != nil {
		t.Error("failed run must not return a partial result")
	}
}

func TestRun_OneFailedSymbolIsDropped(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("GOOD", barsFor("GOOD", day0, 10, 10, 10))
	src.AddBars("EMPTY", barsFor("EMPTY", day0.AddDate(-1, 0, 0), 10))

	strat := &scripted{size: 10}
	res := run(t, Config{
		Symbols:        []string{"GOOD", "EMPTY"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 10),
		InitialCapital: 10000,
	}, src, strat, nil)

	if len(res.Symbols) != 1 || res.Symbols[0] != "GOOD" {
		t.Errorf("loaded symbols = %v, want only GOOD", res.Symbols)
	}
}

func TestNew_Validation(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("A", barsFor("A", day0, 10))
	strat := &scripted{size: 10}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no symbols", Config{Start: day0, End: day0.AddDate(0, 0, 1), InitialCapital: 100}},
		{"empty symbol", Config{Symbols: []string{""}, Start: day0, End: day0.AddDate(0, 0, 1), InitialCapital: 100}},
		{"unknown symbol", Config{Symbols: []string{"NOPE"}, Start: day0, End: day0.AddDate(0, 0, 1), InitialCapital: 100}},
		{"zero capital", Config{Symbols: []string{"A"}, Start: day0, End: day0.AddDate(0, 0, 1)}},
		{"empty range", Config{Symbols: []string{"A"}, Start: day0.AddDate(0, 0, 2), End: day0, InitialCapital: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, src, strat, nil, nil, nil); err == nil {
				t.Error("want validation error, got nil")
			}
		})
	}
}

func TestRun_TimelineMergesCalendars(t *testing.T) {
	src := marketdata.NewMemory()
	// B skips day 1, A skips day 2; the union covers all four days.
	src.AddBars("A", []core.Bar{
		{Symbol: "A", Date: day0, Close: 10},
		{Symbol: "A", Date: day0.AddDate(0, 0, 1), Close: 10},
		{Symbol: "A", Date: day0.AddDate(0, 0, 3), Close: 10},
	})
	src.AddBars("B", []core.Bar{
		{Symbol: "B", Date: day0, Close: 20},
		{Symbol: "B", Date: day0.AddDate(0, 0, 2), Close: 20},
		{Symbol: "B", Date: day0.AddDate(0, 0, 3), Close: 20},
	})

	strat := &scripted{size: 1}
	res := run(t, Config{
		Symbols:        []string{"A", "B"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 10),
		InitialCapital: 10000,
	}, src, strat, nil)

	if len(res.EquityCurve) != 4 {
		t.Errorf("equity curve has %d points, want 4 (union of both calendars)", len(res.EquityCurve))
	}
	for i := 1; i < len(res.EquityCurve); i++ {
		if !res.EquityCurve[i].Date.After(res.EquityCurve[i-1].Date) {
			t.Fatal("equity curve dates must be strictly increasing")
		}
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("A", barsFor("A", day0, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10))

	strat := &scripted{size: 1}
	bt, err := New(Config{
		Symbols:        []string{"A"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 30),
		InitialCapital: 10000,
		ProgressEvery:  3,
	}, src, strat, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	var notices []Progress
	bt.OnProgress(func(p Progress) { notices = append(notices, p) })

	if _, err := bt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notices) == 0 {
		t.Fatal("no progress notices received")
	}
	last := notices[len(notices)-1]
	if last.Pct != 100 || last.Day != last.TotalDays {
		t.Errorf("final notice = %+v, want 100%% on the last day", last)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	src := marketdata.NewMemory()
	src.AddBars("A", barsFor("A", day0, 10, 10, 10))

	strat := &scripted{size: 1}
	bt, err := New(Config{
		Symbols:        []string{"A"},
		Start:          day0,
		End:            day0.AddDate(0, 0, 10),
		InitialCapital: 10000,
	}, src, strat, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bt.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
