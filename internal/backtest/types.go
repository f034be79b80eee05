// Package backtest drives the day-by-day simulation across a symbol universe
// and derives the final performance report.
package backtest

import (
	"time"

	"github.com/parkerwe/hindcast/internal/core"
)

// Trade is one executed portfolio mutation. Forced marks liquidations driven
// by eligibility loss rather than a strategy signal.
type Trade struct {
	Symbol string
	Side   core.Action
	Shares float64
	Price  float64
	Value  float64
	Date   time.Time
	Reason string
	Forced bool
}

// EquityPoint is one day's mark-to-market portfolio value.
type EquityPoint struct {
	Date  time.Time
	Value float64
}

// Metrics holds the derived performance statistics for a completed run.
type Metrics struct {
	TotalReturnPct       float64
	AnnualizedReturn     float64
	SharpeRatio          float64
	MaxDrawdown          float64
	Volatility           float64
	WinRate              float64
	ProfitFactor         float64
	DiversificationRatio float64
	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
}

// SymbolPerformance aggregates one symbol's share of the run.
type SymbolPerformance struct {
	Symbol        string
	Signals       int
	Trades        int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AllocationPct float64
}

// Result is the complete output of one backtest run.
type Result struct {
	RunID           string
	Strategy        string
	Symbols         []string
	StartDate       time.Time
	EndDate         time.Time
	StartingCapital float64
	EndingValue     float64

	Signals     []core.Signal
	Trades      []Trade
	EquityCurve []EquityPoint

	Metrics           Metrics
	SymbolPerformance map[string]SymbolPerformance
}
