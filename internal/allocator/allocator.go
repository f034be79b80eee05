// Package allocator decides how capital is distributed across a symbol
// universe and translates signals into bounded share counts.
package allocator

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/portfolio"
)

// Policy selects the weighting scheme for an allocation.
type Policy string

const (
	PolicyEqualWeight        Policy = "equal_weight"
	PolicyVolatilityAdjusted Policy = "volatility_adjusted"
	PolicyRiskParity         Policy = "risk_parity"
	PolicyMomentum           Policy = "momentum_based"
	PolicyCustom             Policy = "custom"
)

// Config holds allocation parameters. Weights, reserve and threshold are
// fractions in [0,1].
type Config struct {
	Policy                Policy
	MinPositionWeight     float64
	MaxPositionWeight     float64
	CashReservePct        float64
	RebalanceEnabled      bool
	RebalanceThreshold    float64
	RebalanceIntervalDays int
	CustomWeights         map[string]float64
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		Policy:                PolicyEqualWeight,
		MinPositionWeight:     0.0,
		MaxPositionWeight:     0.35,
		CashReservePct:        0.05,
		RebalanceEnabled:      true,
		RebalanceThreshold:    0.05,
		RebalanceIntervalDays: 30,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinPositionWeight < 0 || c.MaxPositionWeight > 1 || c.MinPositionWeight > c.MaxPositionWeight {
		return core.Wrapf(core.ErrConfigInvalid, "position weight bounds [%v, %v] invalid", c.MinPositionWeight, c.MaxPositionWeight)
	}
	if c.MaxPositionWeight <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "max position weight must be positive, got %v", c.MaxPositionWeight)
	}
	if c.CashReservePct < 0 || c.CashReservePct >= 1 {
		return core.Wrapf(core.ErrConfigInvalid, "cash reserve %v must be in [0,1)", c.CashReservePct)
	}
	if c.RebalanceThreshold < 0 {
		return core.Wrapf(core.ErrConfigInvalid, "rebalance threshold %v must not be negative", c.RebalanceThreshold)
	}
	if c.RebalanceIntervalDays <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "rebalance interval %d must be positive", c.RebalanceIntervalDays)
	}
	return nil
}

// Result is the outcome of one allocation decision. Weights sum to 1.0
// within a 1% tolerance after constraint enforcement.
type Result struct {
	TargetWeights  map[string]float64
	TargetValues   map[string]float64
	TargetShares   map[string]float64
	CashReserved   float64
	TotalAllocated float64
	Excluded       []string
	Rebalancing    bool
	Reason         string
}

// Allocator computes target allocations and sizes trades. It caches per-symbol
// close history for volatility and momentum estimation but retains no
// portfolio state between calls.
type Allocator struct {
	cfg    Config
	logger *zap.Logger

	history       map[string][]float64
	lastTargets   map[string]float64
	lastRebalance time.Time
}

// New creates an allocator with a validated configuration.
func New(cfg Config, logger *zap.Logger) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		cfg:     cfg,
		logger:  logger,
		history: make(map[string][]float64),
	}, nil
}

// Config returns the active configuration.
func (a *Allocator) Config() Config {
	return a.cfg
}

// RecordPrice appends a close to the symbol's cached history, used by the
// volatility and momentum policies.
func (a *Allocator) RecordPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	a.history[symbol] = append(a.history[symbol], price)
}

// Allocate computes target weights, values and whole-share counts for the
// given universe. Symbols without a valid current price are excluded; if none
// remain the allocation fails.
func (a *Allocator) Allocate(symbols []string, totalCapital float64, pf *portfolio.Portfolio, prices map[string]float64, date time.Time) (*Result, error) {
	if totalCapital <= 0 {
		return nil, core.Wrapf(core.ErrAllocationFailed, "total capital must be positive, got %v", totalCapital)
	}

	var eligible, excluded []string
	for _, sym := range symbols {
		if price, ok := prices[sym]; ok && price > 0 {
			eligible = append(eligible, sym)
		} else {
			excluded = append(excluded, sym)
		}
	}
	if len(eligible) == 0 {
		return nil, core.Wrapf(core.ErrAllocationFailed, "no symbols with valid prices out of %d", len(symbols))
	}
	sort.Strings(eligible)

	reserved := totalCapital * a.cfg.CashReservePct
	allocatable := totalCapital - reserved

	weights := a.rawWeights(eligible)
	a.enforceBounds(weights)

	result := &Result{
		TargetWeights:  weights,
		TargetValues:   make(map[string]float64, len(weights)),
		TargetShares:   make(map[string]float64, len(weights)),
		CashReserved:   reserved,
		TotalAllocated: allocatable,
		Excluded:       excluded,
		Reason:         string(a.cfg.Policy),
	}

	for sym, w := range weights {
		value := allocatable * w
		result.TargetValues[sym] = value
		result.TargetShares[sym] = math.Floor(value / prices[sym])
	}

	// The allocation becomes the new drift baseline.
	a.lastTargets = weights
	if a.lastRebalance.IsZero() {
		a.lastRebalance = date
	}

	a.logger.Debug("allocation computed",
		zap.String("policy", string(a.cfg.Policy)),
		zap.Int("symbols", len(eligible)),
		zap.Int("excluded", len(excluded)),
		zap.Float64("allocatable", allocatable),
	)

	return result, nil
}

// rawWeights computes unconstrained weights for the selected policy.
func (a *Allocator) rawWeights(symbols []string) map[string]float64 {
	weights := make(map[string]float64, len(symbols))

	switch a.cfg.Policy {
	case PolicyVolatilityAdjusted, PolicyRiskParity:
		var total float64
		inverse := make(map[string]float64, len(symbols))
		for _, sym := range symbols {
			inv := 1 / a.annualizedVolatility(sym)
			inverse[sym] = inv
			total += inv
		}
		for _, sym := range symbols {
			weights[sym] = inverse[sym] / total
		}

	case PolicyMomentum:
		var total float64
		momentum := make(map[string]float64, len(symbols))
		for _, sym := range symbols {
			m := a.periodReturn(sym)
			// Floor keeps losers from being zero-weighted entirely.
			if m < momentumFloor {
				m = momentumFloor
			}
			momentum[sym] = m
			total += m
		}
		for _, sym := range symbols {
			weights[sym] = momentum[sym] / total
		}

	case PolicyCustom:
		var total float64
		for _, sym := range symbols {
			total += a.cfg.CustomWeights[sym]
		}
		if total <= 0 {
			// No usable custom weights: fall back to equal weight.
			for _, sym := range symbols {
				weights[sym] = 1 / float64(len(symbols))
			}
			break
		}
		for _, sym := range symbols {
			weights[sym] = a.cfg.CustomWeights[sym] / total
		}

	default: // PolicyEqualWeight
		for _, sym := range symbols {
			weights[sym] = 1 / float64(len(symbols))
		}
	}

	return weights
}

const (
	// volatilityFloor avoids division blow-up for near-flat series.
	volatilityFloor = 0.01
	// defaultVolatility is assumed when price history is insufficient.
	defaultVolatility = 0.15
	// momentumFloor keeps momentum weights positive.
	momentumFloor = 0.1
	// renormTolerance is the allowed drift of the weight sum from 1.0.
	renormTolerance = 0.01
)

// enforceBounds clamps weights into the configured bounds and renormalizes
// when clamping shifted the total by more than the tolerance.
func (a *Allocator) enforceBounds(weights map[string]float64) {
	var sum float64
	for sym, w := range weights {
		if w > a.cfg.MaxPositionWeight {
			w = a.cfg.MaxPositionWeight
		}
		if w < a.cfg.MinPositionWeight {
			w = a.cfg.MinPositionWeight
		}
		weights[sym] = w
		sum += w
	}

	if sum > 0 && math.Abs(sum-1) > renormTolerance {
		for sym := range weights {
			weights[sym] /= sum
		}
	}
}

// annualizedVolatility estimates the stddev of daily returns, annualized with
// a 252-day factor, floored and defaulted per policy rules.
func (a *Allocator) annualizedVolatility(symbol string) float64 {
	closes := a.history[symbol]
	if len(closes) < 3 {
		return defaultVolatility
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return defaultVolatility
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	vol := math.Sqrt(variance/float64(len(returns)-1)) * math.Sqrt(252)

	if vol < volatilityFloor {
		return volatilityFloor
	}
	return vol
}

// periodReturn is the total return over the cached history.
func (a *Allocator) periodReturn(symbol string) float64 {
	closes := a.history[symbol]
	if len(closes) < 2 || closes[0] <= 0 {
		return 0
	}
	return closes[len(closes)-1]/closes[0] - 1
}
