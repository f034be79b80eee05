package allocator

import (
	"math"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/portfolio"
)

// Sizing rules. Buys are initial-capital-relative so trade sizes do not
// compound as the account grows; sells are portfolio-value-relative.
const (
	// maxPositionPctOfInitial caps any single position.
	maxPositionPctOfInitial = 0.06
	// tradePct is the per-call trade budget.
	tradePct = 0.008
	// minTradeValue is the per-trade floor before clipping.
	minTradeValue = 100.0
	// maxSellPctOfPosition bounds how much of a position one sell may unload.
	maxSellPctOfPosition = 0.30
	// dustFloor suppresses sells too small to be worth executing.
	dustFloor = 50.0
)

// PositionSize converts a signal into a share count under the sizing rules.
// A zero return means the trade is skipped, not an error.
func (a *Allocator) PositionSize(symbol string, pf *portfolio.Portfolio, price, portfolioValue float64, sig core.Signal) float64 {
	if price <= 0 {
		return 0
	}

	switch sig.Action {
	case core.ActionBuy:
		return a.buySize(symbol, pf, price)
	case core.ActionSell:
		return a.sellSize(symbol, pf, price, portfolioValue)
	default:
		return 0
	}
}

// buySize caps the position at 6% of initial capital and trades at most 0.8%
// of initial capital per call (minimum $100), clipped to the remaining
// headroom under the cap. A trade the cash balance cannot cover is skipped
// outright rather than shrunk below the minimum.
func (a *Allocator) buySize(symbol string, pf *portfolio.Portfolio, price float64) float64 {
	initial := pf.InitialCapital()
	positionCap := initial * maxPositionPctOfInitial

	held := pf.Position(symbol).Shares * price
	headroom := positionCap - held
	if headroom <= 0 {
		return 0
	}

	value := initial * tradePct
	if value < minTradeValue {
		value = minTradeValue
	}
	if value > headroom {
		value = headroom
	}
	if value > pf.Cash() {
		return 0
	}

	shares := math.Floor(value / price)
	if shares <= 0 {
		return 0
	}
	return shares
}

// sellSize trades at most 0.8% of current portfolio value (minimum $100) and
// at most 30% of the held position, whichever is smaller. Trades under the
// dust floor are suppressed entirely.
func (a *Allocator) sellSize(symbol string, pf *portfolio.Portfolio, price, portfolioValue float64) float64 {
	pos := pf.Position(symbol)
	if pos.Shares <= 0 {
		return 0
	}

	value := portfolioValue * tradePct
	if value < minTradeValue {
		value = minTradeValue
	}
	if byPosition := pos.Shares * price * maxSellPctOfPosition; byPosition < value {
		value = byPosition
	}
	if value < dustFloor {
		return 0
	}

	shares := math.Floor(value / price)
	if shares <= 0 {
		return 0
	}
	if shares > pos.Shares {
		shares = pos.Shares
	}
	return shares
}
