package indicator

import (
	"errors"
	"testing"

	"github.com/parkerwe/hindcast/internal/core"
)

func TestCrossoverSignals_SingleGoldenCross(t *testing.T) {
	bars := testBars(10, 10, 10, 12, 14, 16)

	signals, err := CrossoverSignals(bars, 2, 3)
	if err != nil {
		t.Fatalf("CrossoverSignals() error = %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want exactly 1", len(signals))
	}

	sig := signals[0]
	if sig.Action != core.ActionBuy {
		t.Errorf("action = %v, want buy", sig.Action)
	}
	// SMA2 first exceeds SMA3 at the fourth bar (close 12)
	if sig.Price != 12 {
		t.Errorf("price = %v, want 12", sig.Price)
	}
	if sig.Symbol != "TEST" {
		t.Errorf("symbol = %q, want TEST", sig.Symbol)
	}
	if sig.Reason == "" {
		t.Error("signal should carry a human-readable reason")
	}
}

func TestCrossoverSignals_DeathCross(t *testing.T) {
	// Rises first so the short average sits above the long one, then falls
	// through it.
	bars := testBars(10, 12, 14, 12, 10, 10)

	signals, err := CrossoverSignals(bars, 2, 3)
	if err != nil {
		t.Fatalf("CrossoverSignals() error = %v", err)
	}
	var sells int
	for _, sig := range signals {
		if sig.Action == core.ActionSell {
			sells++
		}
	}
	if sells != 1 {
		t.Errorf("got %d sell signals, want 1", sells)
	}
}

func TestCrossoverSignals_FlatSeriesEmitsNothing(t *testing.T) {
	bars := testBars(10, 10, 10, 10, 10, 10, 10)

	signals, err := CrossoverSignals(bars, 2, 3)
	if err != nil {
		t.Fatalf("CrossoverSignals() error = %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("flat series should emit no signals, got %d", len(signals))
	}
}

func TestCrossoverSignals_InvalidPeriods(t *testing.T) {
	_, err := CrossoverSignals(testBars(1, 2, 3, 4), 5, 3)
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("want ErrConfigInvalid, got %v", err)
	}
}

func TestThresholdSignals_OversoldRecovery(t *testing.T) {
	// Drive the price down hard to push RSI below 30, then recover.
	closes := []float64{100, 95, 90, 85, 80, 75, 70, 82, 90, 95}
	bars := testBars(closes...)

	signals, err := ThresholdSignals(bars, 5, 30, 70)
	if err != nil {
		t.Fatalf("ThresholdSignals() error = %v", err)
	}

	var buys int
	for _, sig := range signals {
		if sig.Action == core.ActionBuy {
			buys++
			if sig.Reason == "" {
				t.Error("buy signal should carry a reason")
			}
		}
	}
	if buys == 0 {
		t.Error("expected a buy signal on oversold recovery")
	}
}

func TestThresholdSignals_InvalidThresholds(t *testing.T) {
	bars := testBars(1, 2, 3, 4, 5, 6, 7, 8)
	for _, tt := range []struct{ oversold, overbought float64 }{
		{70, 30}, {0, 70}, {30, 120}, {50, 50},
	} {
		if _, err := ThresholdSignals(bars, 3, tt.oversold, tt.overbought); !errors.Is(err, core.ErrConfigInvalid) {
			t.Errorf("ThresholdSignals(%v, %v): want ErrConfigInvalid, got %v", tt.oversold, tt.overbought, err)
		}
	}
}
