package allocator

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/parkerwe/hindcast/internal/portfolio"
)

// ShouldRebalance reports whether a rebalance is due, either because the
// configured calendar interval elapsed since the last rebalance or because
// the maximum per-symbol drift between current and last-target weights
// exceeds the threshold.
func (a *Allocator) ShouldRebalance(date time.Time, pf *portfolio.Portfolio, prices map[string]float64) bool {
	if !a.cfg.RebalanceEnabled {
		return false
	}

	if !a.lastRebalance.IsZero() {
		elapsed := date.Sub(a.lastRebalance)
		if elapsed >= time.Duration(a.cfg.RebalanceIntervalDays)*24*time.Hour {
			return true
		}
	}

	if len(a.lastTargets) == 0 {
		return false
	}

	total := pf.TotalValue(prices)
	if total <= 0 {
		return false
	}

	var maxDrift float64
	for sym, target := range a.lastTargets {
		current := pf.Position(sym).Shares * prices[sym] / total
		drift := current - target
		if drift < 0 {
			drift = -drift
		}
		if drift > maxDrift {
			maxDrift = drift
		}
	}

	return maxDrift > a.cfg.RebalanceThreshold
}

// Rebalance recomputes a fresh target allocation for the portfolio's current
// symbol set and records it as the new drift baseline.
func (a *Allocator) Rebalance(pf *portfolio.Portfolio, prices map[string]float64, date time.Time) (*Result, error) {
	positions := pf.Positions()
	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	if len(symbols) == 0 {
		for sym, price := range prices {
			if price > 0 {
				symbols = append(symbols, sym)
			}
		}
		sort.Strings(symbols)
	}

	result, err := a.Allocate(symbols, pf.TotalValue(prices), pf, prices, date)
	if err != nil {
		return nil, err
	}

	result.Rebalancing = true
	a.lastRebalance = date

	a.logger.Debug("rebalance computed",
		zap.Time("date", date),
		zap.Int("symbols", len(symbols)),
	)

	return result, nil
}
