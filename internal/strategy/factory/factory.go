// Package factory builds strategies by configured name.
package factory

import (
	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/strategy"
	"github.com/parkerwe/hindcast/internal/strategy/ma_crossover"
	"github.com/parkerwe/hindcast/internal/strategy/rsi"
)

// New creates a validated strategy from its configured name and parameters.
func New(name string, params strategy.Params) (strategy.Strategy, error) {
	var strat strategy.Strategy
	switch name {
	case "ma_crossover":
		strat = ma_crossover.New(params)
	case "rsi":
		strat = rsi.New(params)
	default:
		return nil, core.Wrapf(core.ErrConfigInvalid, "unknown strategy %q", name)
	}

	if err := strat.Validate(); err != nil {
		return nil, err
	}
	return strat, nil
}

// Names lists the available strategy names.
func Names() []string {
	return []string{"ma_crossover", "rsi"}
}
