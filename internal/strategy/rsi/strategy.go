// Package rsi implements an RSI mean-reversion strategy.
package rsi

import (
	"fmt"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/indicator"
	"github.com/parkerwe/hindcast/internal/portfolio"
	"github.com/parkerwe/hindcast/internal/strategy"
)

const name = "rsi"

// Defaults when the configuration leaves parameters unset.
const (
	DefaultPeriod     = 14
	DefaultOversold   = 30
	DefaultOverbought = 70
)

// RSI signals a buy when the index rises back through the oversold threshold
// and a sell when it falls back through the overbought threshold.
type RSI struct {
	period     int
	oversold   float64
	overbought float64

	series *indicator.Series
}

// New creates the strategy from its parameter bag.
func New(params strategy.Params) *RSI {
	return &RSI{
		period:     int(params.Get("period", DefaultPeriod)),
		oversold:   params.Get("oversold", DefaultOversold),
		overbought: params.Get("overbought", DefaultOverbought),
		series:     indicator.NewSeries(),
	}
}

func (r *RSI) Name() string {
	return name
}

func (r *RSI) Description() string {
	return fmt.Sprintf("RSI (%d, %.0f/%.0f)", r.period, r.oversold, r.overbought)
}

// MinBars needs two RSI values, which takes period+2 bars.
func (r *RSI) MinBars() int {
	return r.period + 2
}

func (r *RSI) Validate() error {
	if r.period <= 1 {
		return core.Wrapf(core.ErrConfigInvalid, "%s: period must exceed 1, got %d", name, r.period)
	}
	if r.oversold <= 0 || r.oversold >= r.overbought || r.overbought >= 100 {
		return core.Wrapf(core.ErrConfigInvalid, "%s: thresholds must satisfy 0 < oversold (%.1f) < overbought (%.1f) < 100", name, r.oversold, r.overbought)
	}
	return nil
}

func (r *RSI) Evaluate(window []core.Bar, pf *portfolio.Portfolio, symbol string) (core.Signal, error) {
	if len(window) < r.MinBars() {
		return strategy.Hold(name, symbol, "warming up", window), nil
	}

	r.series.SetBars(window)
	values, err := r.series.RSI(r.period)
	if err != nil {
		return core.Signal{}, err
	}

	curr, prev := values[len(values)-1], values[len(values)-2]
	last := window[len(window)-1]

	switch {
	case prev < r.oversold && curr >= r.oversold && !pf.HasPosition(symbol):
		return core.Signal{
			Symbol:     symbol,
			Action:     core.ActionBuy,
			Price:      last.Close,
			Date:       last.Date,
			Confidence: confidence(prev, r.oversold),
			Reason:     fmt.Sprintf("RSI%d recovered through oversold: %.1f -> %.1f (threshold %.1f)", r.period, prev, curr, r.oversold),
			Strategy:   name,
		}, nil
	case prev > r.overbought && curr <= r.overbought && pf.HasPosition(symbol):
		return core.Signal{
			Symbol:     symbol,
			Action:     core.ActionSell,
			Price:      last.Close,
			Date:       last.Date,
			Confidence: confidence(prev, r.overbought),
			Reason:     fmt.Sprintf("RSI%d dropped through overbought: %.1f -> %.1f (threshold %.1f)", r.period, prev, curr, r.overbought),
			Strategy:   name,
		}, nil
	}

	return strategy.Hold(name, symbol, fmt.Sprintf("RSI %.1f inside thresholds", curr), window), nil
}

func (r *RSI) PositionSize(pf *portfolio.Portfolio, price, portfolioValue float64) float64 {
	return strategy.DefaultPositionSize(pf, price, portfolioValue)
}

// confidence grows with how far past the threshold the RSI had gone.
func confidence(prev, threshold float64) float64 {
	depth := prev - threshold
	if depth < 0 {
		depth = -depth
	}

	c := 0.5 + depth/100
	if c > 0.9 {
		c = 0.9
	}
	return c
}
