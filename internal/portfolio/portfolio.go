// Package portfolio provides the cash and position ledger for a backtest run.
// It is pure state: no I/O, no market data access.
package portfolio

import (
	"math"

	"github.com/parkerwe/hindcast/internal/core"
)

// Position represents the current holding for one symbol.
// A position with zero shares is treated as absent even if retained in the map.
type Position struct {
	Symbol   string
	Shares   float64
	AvgPrice float64
}

// MarketValue returns the position value at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Shares * price
}

// UnrealizedPnL returns the open profit or loss at the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.AvgPrice) * p.Shares
}

// Portfolio tracks cash and positions. The simulation orchestrator owns the
// portfolio exclusively for the duration of one run, so access is not locked.
type Portfolio struct {
	cash           float64
	initialCapital float64
	positions      map[string]*Position
}

// New creates a portfolio with the given starting capital.
// Non-positive capital is a programmer error and is rejected.
func New(initialCapital float64) (*Portfolio, error) {
	if initialCapital <= 0 || math.IsNaN(initialCapital) {
		return nil, core.Wrapf(core.ErrConfigInvalid, "initial capital must be positive, got %v", initialCapital)
	}
	return &Portfolio{
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[string]*Position),
	}, nil
}

// MustNew creates a portfolio or panics. For tests and static setups.
func MustNew(initialCapital float64) *Portfolio {
	p, err := New(initialCapital)
	if err != nil {
		panic(err)
	}
	return p
}

// Cash returns the available cash balance.
func (pf *Portfolio) Cash() float64 {
	return pf.cash
}

// InitialCapital returns the immutable starting capital.
func (pf *Portfolio) InitialCapital() float64 {
	return pf.initialCapital
}

// Buy adds shares at the given price, recomputing the weighted-average cost
// basis. Returns false without mutation if the arguments are invalid or cash
// is insufficient. An unaffordable trade is an expected outcome, not an error.
func (pf *Portfolio) Buy(symbol string, shares, price float64) bool {
	if symbol == "" || shares <= 0 || price < 0 {
		return false
	}
	cost := shares * price
	if cost > pf.cash {
		return false
	}

	pf.cash -= cost
	pos, ok := pf.positions[symbol]
	if !ok || pos.Shares == 0 {
		pf.positions[symbol] = &Position{Symbol: symbol, Shares: shares, AvgPrice: price}
		return true
	}

	total := pos.Shares + shares
	pos.AvgPrice = (pos.Shares*pos.AvgPrice + shares*price) / total
	pos.Shares = total
	return true
}

// Sell removes shares at the given price. The average price is unchanged by
// sells. Returns false without mutation if no position is held or the request
// exceeds the held shares.
func (pf *Portfolio) Sell(symbol string, shares, price float64) bool {
	if symbol == "" || shares <= 0 || price < 0 {
		return false
	}
	pos, ok := pf.positions[symbol]
	if !ok || pos.Shares == 0 || shares > pos.Shares {
		return false
	}

	pf.cash += shares * price
	pos.Shares -= shares
	return true
}

// SellAll liquidates the full position at the given price.
func (pf *Portfolio) SellAll(symbol string, price float64) bool {
	pos, ok := pf.positions[symbol]
	if !ok || pos.Shares == 0 {
		return false
	}
	return pf.Sell(symbol, pos.Shares, price)
}

// HasPosition reports whether a non-empty position is held.
func (pf *Portfolio) HasPosition(symbol string) bool {
	pos, ok := pf.positions[symbol]
	return ok && pos.Shares > 0
}

// Position returns a copy of the position for the symbol, or a zero Position
// if none is held.
func (pf *Portfolio) Position(symbol string) Position {
	pos, ok := pf.positions[symbol]
	if !ok || pos.Shares == 0 {
		return Position{Symbol: symbol}
	}
	return *pos
}

// Positions returns copies of all non-empty positions keyed by symbol.
func (pf *Portfolio) Positions() map[string]Position {
	result := make(map[string]Position, len(pf.positions))
	for sym, pos := range pf.positions {
		if pos.Shares > 0 {
			result[sym] = *pos
		}
	}
	return result
}

// TotalValue marks the portfolio to market with the given price map.
// Positions without a price entry are valued at their average cost.
func (pf *Portfolio) TotalValue(prices map[string]float64) float64 {
	value := pf.cash
	for sym, pos := range pf.positions {
		if pos.Shares == 0 {
			continue
		}
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = pos.AvgPrice
		}
		value += pos.MarketValue(price)
	}
	return value
}

// TotalUnrealizedPnL returns the open profit and loss across all positions.
func (pf *Portfolio) TotalUnrealizedPnL(prices map[string]float64) float64 {
	var pnl float64
	for sym, pos := range pf.positions {
		if pos.Shares == 0 {
			continue
		}
		if price, ok := prices[sym]; ok && price > 0 {
			pnl += pos.UnrealizedPnL(price)
		}
	}
	return pnl
}

// Reset clears positions and restores cash to the initial capital.
// Called at the start of each backtest.
func (pf *Portfolio) Reset() {
	pf.cash = pf.initialCapital
	pf.positions = make(map[string]*Position)
}
