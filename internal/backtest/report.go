package backtest

import (
	"encoding/json"
	"time"
)

// Report is the serializable output shape consumed by the presentation layer
// and the archive.
type Report struct {
	RunID           string   `json:"run_id"`
	Strategy        string   `json:"strategy"`
	Symbols         []string `json:"symbols"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	StartingCapital float64  `json:"starting_capital"`
	EndingValue     float64  `json:"ending_value"`
	TotalReturnPct  float64  `json:"total_return_pct"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`

	PerformanceMetrics ReportMetrics           `json:"performance_metrics"`
	EquityCurve        []ReportEquityPoint     `json:"equity_curve"`
	Signals            []ReportSignal          `json:"signals"`
	SymbolPerformance  map[string]ReportSymbol `json:"symbol_performance"`
}

// ReportMetrics is the nested performance_metrics object.
type ReportMetrics struct {
	Volatility           float64 `json:"volatility"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	ProfitFactor         float64 `json:"profit_factor"`
	DiversificationRatio float64 `json:"diversification_ratio"`
}

// ReportEquityPoint is one equity curve entry.
type ReportEquityPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ReportSignal is one generated signal entry.
type ReportSignal struct {
	Symbol     string  `json:"symbol"`
	Signal     string  `json:"signal"`
	Price      float64 `json:"price"`
	Date       string  `json:"date"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// ReportSymbol is one symbol's aggregated performance.
type ReportSymbol struct {
	Signals       int     `json:"signals"`
	Trades        int     `json:"trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AllocationPct float64 `json:"allocation_pct"`
}

func reportDate(t time.Time) string {
	return t.Format(dateLayout)
}

// NewReport converts a finalized Result into the output shape.
func NewReport(res *Result) *Report {
	rep := &Report{
		RunID:           res.RunID,
		Strategy:        res.Strategy,
		Symbols:         res.Symbols,
		StartDate:       reportDate(res.StartDate),
		EndDate:         reportDate(res.EndDate),
		StartingCapital: res.StartingCapital,
		EndingValue:     res.EndingValue,
		TotalReturnPct:  res.Metrics.TotalReturnPct,
		TotalTrades:     res.Metrics.TotalTrades,
		WinningTrades:   res.Metrics.WinningTrades,
		LosingTrades:    res.Metrics.LosingTrades,
		WinRate:         res.Metrics.WinRate,
		MaxDrawdown:     res.Metrics.MaxDrawdown,
		SharpeRatio:     res.Metrics.SharpeRatio,
		PerformanceMetrics: ReportMetrics{
			Volatility:           res.Metrics.Volatility,
			AnnualizedReturn:     res.Metrics.AnnualizedReturn,
			ProfitFactor:         res.Metrics.ProfitFactor,
			DiversificationRatio: res.Metrics.DiversificationRatio,
		},
		EquityCurve:       make([]ReportEquityPoint, 0, len(res.EquityCurve)),
		Signals:           make([]ReportSignal, 0, len(res.Signals)),
		SymbolPerformance: make(map[string]ReportSymbol, len(res.SymbolPerformance)),
	}

	for _, pt := range res.EquityCurve {
		rep.EquityCurve = append(rep.EquityCurve, ReportEquityPoint{
			Date:  reportDate(pt.Date),
			Value: pt.Value,
		})
	}
	for _, sig := range res.Signals {
		rep.Signals = append(rep.Signals, ReportSignal{
			Symbol:     sig.Symbol,
			Signal:     string(sig.Action),
			Price:      sig.Price,
			Date:       reportDate(sig.Date),
			Reason:     sig.Reason,
			Confidence: sig.Confidence,
		})
	}
	for sym, p := range res.SymbolPerformance {
		rep.SymbolPerformance[sym] = ReportSymbol{
			Signals:       p.Signals,
			Trades:        p.Trades,
			WinningTrades: p.WinningTrades,
			LosingTrades:  p.LosingTrades,
			WinRate:       p.WinRate,
			AllocationPct: p.AllocationPct,
		}
	}
	return rep
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
