package ma_crossover

import (
	"errors"
	"testing"
	"time"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/portfolio"
	"github.com/parkerwe/hindcast/internal/strategy"
)

func bars(closes ...float64) []core.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]core.Bar, len(closes))
	for i, c := range closes {
		out[i] = core.Bar{Symbol: "TEST", Date: base.AddDate(0, 0, i), Close: c, Volume: 100}
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  strategy.Params
		wantErr bool
	}{
		{"defaults", strategy.Params{}, false},
		{"explicit valid", strategy.Params{"short_period": 5, "long_period": 20}, false},
		{"short not below long", strategy.Params{"short_period": 20, "long_period": 10}, true},
		{"equal periods", strategy.Params{"short_period": 10, "long_period": 10}, true},
		{"non-positive short", strategy.Params{"short_period": 0, "long_period": 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.params).Validate()
			if tt.wantErr && !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("want ErrConfigInvalid, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEvaluate_SingleBuyOnGoldenCross(t *testing.T) {
	series := bars(10, 10, 10, 12, 14, 16)
	strat := New(strategy.Params{"short_period": 2, "long_period": 3})
	pf := portfolio.MustNew(10000)

	var buys []core.Signal
	for i := range series {
		sig, err := strat.Evaluate(series[:i+1], pf, "TEST")
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if sig.Action == core.ActionBuy {
			buys = append(buys, sig)
		}
	}

	if len(buys) != 1 {
		t.Fatalf("got %d buy signals, want exactly 1", len(buys))
	}
	if buys[0].Price != 12 {
		t.Errorf("buy price = %v, want 12 (bar where short first exceeds long)", buys[0].Price)
	}
	if buys[0].Symbol != "TEST" || buys[0].Strategy != "ma_crossover" {
		t.Errorf("signal attribution incomplete: %+v", buys[0])
	}
}

func TestEvaluate_NoBuyWhilePositionHeld(t *testing.T) {
	series := bars(10, 10, 10, 12, 14, 16)
	strat := New(strategy.Params{"short_period": 2, "long_period": 3})
	pf := portfolio.MustNew(10000)
	pf.Buy("TEST", 10, 10)

	for i := range series {
		sig, err := strat.Evaluate(series[:i+1], pf, "TEST")
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if sig.Action == core.ActionBuy {
			t.Fatal("no buy should be emitted while a position is held")
		}
	}
}

func TestEvaluate_AllowPositionIncrease(t *testing.T) {
	series := bars(10, 10, 10, 12, 14, 16)
	strat := New(strategy.Params{"short_period": 2, "long_period": 3, "allow_position_increase": 1})
	pf := portfolio.MustNew(10000)
	pf.Buy("TEST", 10, 10)

	var buys int
	for i := range series {
		sig, _ := strat.Evaluate(series[:i+1], pf, "TEST")
		if sig.Action == core.ActionBuy {
			buys++
		}
	}
	if buys != 1 {
		t.Errorf("got %d buys, want 1 with position increases enabled", buys)
	}
}

func TestEvaluate_SellOnDeathCrossRequiresPosition(t *testing.T) {
	series := bars(16, 14, 12, 10, 10, 10)
	strat := New(strategy.Params{"short_period": 2, "long_period": 3})

	flat := portfolio.MustNew(10000)
	for i := range series {
		sig, _ := strat.Evaluate(series[:i+1], flat, "TEST")
		if sig.Action == core.ActionSell {
			t.Fatal("no sell should be emitted while flat")
		}
	}

	held := portfolio.MustNew(10000)
	held.Buy("TEST", 10, 16)
	var sells int
	for i := range series {
		sig, _ := strat.Evaluate(series[:i+1], held, "TEST")
		if sig.Action == core.ActionSell {
			sells++
		}
	}
	if sells != 1 {
		t.Errorf("got %d sells, want 1", sells)
	}
}

func TestEvaluate_ShortWindowHolds(t *testing.T) {
	strat := New(strategy.Params{"short_period": 2, "long_period": 3})
	pf := portfolio.MustNew(10000)

	sig, err := strat.Evaluate(bars(10, 11), pf, "TEST")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig.Action != core.ActionHold {
		t.Errorf("action = %v, want hold before warm-up completes", sig.Action)
	}
}

func TestPositionSize(t *testing.T) {
	strat := New(strategy.Params{})
	pf := portfolio.MustNew(10000)

	shares := strat.PositionSize(pf, 100, 10000)
	if shares != 5 {
		t.Errorf("shares = %v, want 5 (5%% of value)", shares)
	}
	if strat.PositionSize(pf, 0, 10000) != 0 {
		t.Error("zero price must size to zero")
	}
}
