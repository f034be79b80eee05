package rsi

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
		{"explicit valid", strategy.Params{"period": 7, "oversold": 25, "overbought": 75}, false},
		{"inverted thresholds", strategy.Params{"oversold": 70, "overbought": 30}, true},
		{"oversold at zero", strategy.Params{"oversold": 0}, true},
		{"overbought at 100", strategy.Params{"overbought": 100}, true},
		{"period too small", strategy.Params{"period": 1}, true},
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

func TestEvaluate_BuyOnOversoldRecovery(t *testing.T) {
	series := bars(100, 95, 90, 85, 80, 75, 70, 82, 90, 95)
	strat := New(strategy.Params{"period": 5})
	pf := portfolio.MustNew(10000)

	var buys int
	for i := range series {
		sig, err := strat.Evaluate(series[:i+1], pf, "TEST")
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if sig.Action == core.ActionBuy {
			buys++
			if sig.Reason == "" || sig.Symbol != "TEST" {
				t.Errorf("incomplete buy signal: %+v", sig)
			}
		}
	}
	if buys == 0 {
		t.Error("expected a buy on oversold recovery")
	}
}

func TestEvaluate_SellOnOverboughtDropRequiresPosition(t *testing.T) {
	series := bars(100, 105, 110, 115, 120, 125, 130, 118, 110, 105)
	strat := New(strategy.Params{"period": 5})

	flat := portfolio.MustNew(10000)
	for i := range series {
		sig, _ := strat.Evaluate(series[:i+1], flat, "TEST")
		if sig.Action == core.ActionSell {
			t.Fatal("no sell should be emitted while flat")
		}
	}

	held := portfolio.MustNew(100000)
	held.Buy("TEST", 10, 100)
	var sells int
	for i := range series {
		sig, _ := strat.Evaluate(series[:i+1], held, "TEST")
		if sig.Action == core.ActionSell {
			sells++
		}
	}
	if sells == 0 {
		t.Error("expected a sell on overbought drop with a position held")
	}
}

func TestEvaluate_FlatSeriesHolds(t *testing.T) {
	series := bars(50, 50, 50, 50, 50, 50, 50, 50, 50, 50)
	strat := New(strategy.Params{"period": 5})
	pf := portfolio.MustNew(10000)

	for i := range series {
		sig, err := strat.Evaluate(series[:i+1], pf, "TEST")
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if sig.Action != core.ActionHold {
			t.Fatalf("flat series must hold, got %v", sig.Action)
		}
	}
}
