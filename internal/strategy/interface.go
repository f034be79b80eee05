// Package strategy defines the trading strategy contract.
package strategy

import (
	"math"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/portfolio"
)

// Params is the string-keyed numeric parameter bag supplied by configuration.
type Params map[string]float64

// Get returns the named parameter or the default when absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Strategy converts a price window plus current portfolio state into a
// trading signal. Evaluate must be a pure function of its inputs; the only
// strategy-local state allowed is an indicator cache reset whenever a new
// window is supplied.
type Strategy interface {
	Name() string
	Description() string

	// MinBars is the smallest window that can produce a signal.
	MinBars() int

	// Validate checks the strategy configuration. A bad configuration is
	// reported, never silently clamped.
	Validate() error

	// Evaluate inspects the window (ordered bars ending "today") and returns
	// a signal. Hold signals are returned rather than nil so the caller
	// always gets the evaluation date and price.
	Evaluate(window []core.Bar, pf *portfolio.Portfolio, symbol string) (core.Signal, error)

	// PositionSize is the default sizing helper used when no allocator is in
	// play. The allocator's sizing is authoritative when present.
	PositionSize(pf *portfolio.Portfolio, price, portfolioValue float64) float64
}

// defaultSizePct is the share of portfolio value a default-sized buy targets.
const defaultSizePct = 5.0

// DefaultPositionSize sizes a buy at defaultSizePct of portfolio value,
// clipped to available cash, floored to whole shares.
func DefaultPositionSize(pf *portfolio.Portfolio, price, portfolioValue float64) float64 {
	if price <= 0 {
		return 0
	}
	value := portfolioValue * defaultSizePct / 100
	if value > pf.Cash() {
		value = pf.Cash()
	}
	return math.Floor(value / price)
}

// Hold builds a hold signal for the last bar of the window.
func Hold(name, symbol, reason string, window []core.Bar) core.Signal {
	sig := core.Signal{
		Symbol:   symbol,
		Action:   core.ActionHold,
		Reason:   reason,
		Strategy: name,
	}
	if len(window) > 0 {
		last := window[len(window)-1]
		sig.Price = last.Close
		sig.Date = last.Date
	}
	return sig
}
