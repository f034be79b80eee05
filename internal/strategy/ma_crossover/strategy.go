// Package ma_crossover implements a moving average crossover strategy.
package ma_crossover

import (
	"fmt"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/indicator"
	"github.com/parkerwe/hindcast/internal/portfolio"
	"github.com/parkerwe/hindcast/internal/strategy"
)

const name = "ma_crossover"

// Default periods when the configuration leaves them unset.
const (
	DefaultShortPeriod = 10
	DefaultLongPeriod  = 30
)

// MACrossover signals a buy when the short SMA crosses above the long SMA and
// a sell when it crosses below. Buys are only emitted while flat unless
// position increases are enabled; sells require an open position.
type MACrossover struct {
	shortPeriod   int
	longPeriod    int
	allowIncrease bool

	series *indicator.Series
}

// New creates the strategy from its parameter bag.
func New(params strategy.Params) *MACrossover {
	return &MACrossover{
		shortPeriod:   int(params.Get("short_period", DefaultShortPeriod)),
		longPeriod:    int(params.Get("long_period", DefaultLongPeriod)),
		allowIncrease: params.Get("allow_position_increase", 0) != 0,
		series:        indicator.NewSeries(),
	}
}

func (m *MACrossover) Name() string {
	return name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.shortPeriod, m.longPeriod)
}

// MinBars needs one bar beyond the long window so a previous value exists on
// both averages.
func (m *MACrossover) MinBars() int {
	return m.longPeriod + 1
}

func (m *MACrossover) Validate() error {
	if m.shortPeriod <= 0 {
		return core.Wrapf(core.ErrConfigInvalid, "%s: short period must be positive, got %d", name, m.shortPeriod)
	}
	if m.shortPeriod >= m.longPeriod {
		return core.Wrapf(core.ErrConfigInvalid, "%s: short period %d must be below long period %d", name, m.shortPeriod, m.longPeriod)
	}
	return nil
}

func (m *MACrossover) Evaluate(window []core.Bar, pf *portfolio.Portfolio, symbol string) (core.Signal, error) {
	if len(window) < m.MinBars() {
		return strategy.Hold(name, symbol, "warming up", window), nil
	}

	m.series.SetBars(window)
	short, err := m.series.SMA(m.shortPeriod)
	if err != nil {
		return core.Signal{}, err
	}
	long, err := m.series.SMA(m.longPeriod)
	if err != nil {
		return core.Signal{}, err
	}

	currShort, prevShort := short[len(short)-1], short[len(short)-2]
	currLong, prevLong := long[len(long)-1], long[len(long)-2]
	last := window[len(window)-1]

	crossedAbove := prevShort <= prevLong && currShort > currLong
	crossedBelow := prevShort >= prevLong && currShort < currLong

	switch {
	case crossedAbove && (!pf.HasPosition(symbol) || m.allowIncrease):
		return core.Signal{
			Symbol:     symbol,
			Action:     core.ActionBuy,
			Price:      last.Close,
			Date:       last.Date,
			Confidence: confidence(currShort, currLong),
			Reason:     fmt.Sprintf("Golden Cross: SMA%d (%.2f) crossed above SMA%d (%.2f)", m.shortPeriod, currShort, m.longPeriod, currLong),
			Strategy:   name,
		}, nil
	case crossedBelow && pf.HasPosition(symbol):
		return core.Signal{
			Symbol:     symbol,
			Action:     core.ActionSell,
			Price:      last.Close,
			Date:       last.Date,
			Confidence: confidence(currShort, currLong),
			Reason:     fmt.Sprintf("Death Cross: SMA%d (%.2f) crossed below SMA%d (%.2f)", m.shortPeriod, currShort, m.longPeriod, currLong),
			Strategy:   name,
		}, nil
	}

	return strategy.Hold(name, symbol, "no crossover", window), nil
}

func (m *MACrossover) PositionSize(pf *portfolio.Portfolio, price, portfolioValue float64) float64 {
	return strategy.DefaultPositionSize(pf, price, portfolioValue)
}

// confidence returns higher confidence for larger divergence.
func confidence(fast, slow float64) float64 {
	if slow == 0 {
		return 0.5
	}
	diff := (fast - slow) / slow
	if diff < 0 {
		diff = -diff
	}

	c := 0.5 + diff*10
	if c > 0.9 {
		c = 0.9
	}
	return c
}
