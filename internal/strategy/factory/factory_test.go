package factory

import (
	"errors"
	"testing"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/strategy"
)

func TestNew_KnownStrategies(t *testing.T) {
	for _, name := range Names() {
		strat, err := New(name, strategy.Params{})
		if err != nil {
			t.Errorf("New(%q) error = %v", name, err)
			continue
		}
		if strat.Name() != name {
			t.Errorf("Name() = %q, want %q", strat.Name(), name)
		}
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New("momentum_breakout", strategy.Params{})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("want ErrConfigInvalid, got %v", err)
	}
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	_, err := New("ma_crossover", strategy.Params{"short_period": 50, "long_period": 10})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("want ErrConfigInvalid, got %v", err)
	}

	_, err = New("rsi", strategy.Params{"oversold": 90, "overbought": 20})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("want ErrConfigInvalid, got %v", err)
	}
}
