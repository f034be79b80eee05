package backtest

import (
	"math"

	"github.com/parkerwe/hindcast/internal/core"
	"github.com/parkerwe/hindcast/internal/portfolio"
)

// tradingDaysPerYear is the annualization factor for returns and volatility.
const tradingDaysPerYear = 252

// Finalize derives the performance metrics and per-symbol attribution for a
// completed run. prices is the final mark-to-market price map.
func Finalize(res *Result, pf *portfolio.Portfolio, prices map[string]float64) {
	if len(res.EquityCurve) == 0 {
		res.EndingValue = res.StartingCapital
		return
	}
	res.EndingValue = res.EquityCurve[len(res.EquityCurve)-1].Value

	returns := dailyReturns(res.EquityCurve)
	winning, losing, grossProfit, grossLoss := pairTrades(res.Trades)

	m := Metrics{
		TotalReturnPct:   (res.EndingValue - res.StartingCapital) / res.StartingCapital * 100,
		AnnualizedReturn: annualizedReturn(res.StartingCapital, res.EndingValue, len(res.EquityCurve)),
		SharpeRatio:      sharpeRatio(returns),
		MaxDrawdown:      maxDrawdown(res.EquityCurve),
		Volatility:       stddev(returns) * math.Sqrt(tradingDaysPerYear) * 100,
		TotalTrades:      len(res.Trades),
		WinningTrades:    winning,
		LosingTrades:     losing,
	}
	if closed := winning + losing; closed > 0 {
		m.WinRate = float64(winning) / float64(closed) * 100
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}

	res.SymbolPerformance = symbolPerformance(res, pf, prices)
	m.DiversificationRatio = diversificationRatio(pf, prices)
	res.Metrics = m
}

// dailyReturns is the pairwise percentage deltas of the equity curve,
// skipping non-positive denominators.
func dailyReturns(curve []EquityPoint) []float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, curve[i].Value/prev-1)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// sharpeRatio is the annualized mean daily return over the annualized stddev,
// with a zero risk-free rate. Zero when the series is too short or flat.
func sharpeRatio(returns []float64) float64 {
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	annualizedMean := mean(returns) * tradingDaysPerYear
	annualizedSd := sd * math.Sqrt(tradingDaysPerYear)
	return annualizedMean / annualizedSd
}

// maxDrawdown is the largest peak-to-trough percentage decline walking the
// equity curve forward.
func maxDrawdown(curve []EquityPoint) float64 {
	var maxDD, peak float64
	for _, pt := range curve {
		if pt.Value > peak {
			peak = pt.Value
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - pt.Value) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// annualizedReturn is (ending/starting)^(252/days) - 1, guarded against a
// non-positive horizon.
func annualizedReturn(starting, ending float64, days int) float64 {
	if days <= 0 || starting <= 0 || ending <= 0 {
		return 0
	}
	return math.Pow(ending/starting, tradingDaysPerYear/float64(days)) - 1
}

// roundTrip is a completed buy/sell pairing used for win/loss classification.
type roundTrip struct {
	symbol string
	pnl    float64
}

// pairTrades matches chronological buy and sell events per symbol. Each sell
// consumes the most recent unmatched buy of the same symbol.
func pairTrades(trades []Trade) (winning, losing int, grossProfit, grossLoss float64) {
	for _, rt := range roundTrips(trades) {
		if rt.pnl > 0 {
			winning++
			grossProfit += rt.pnl
		} else {
			losing++
			grossLoss += -rt.pnl
		}
	}
	return winning, losing, grossProfit, grossLoss
}

func roundTrips(trades []Trade) []roundTrip {
	open := make(map[string][]Trade)
	var trips []roundTrip

	for _, t := range trades {
		switch t.Side {
		case core.ActionBuy:
			open[t.Symbol] = append(open[t.Symbol], t)
		case core.ActionSell:
			stack := open[t.Symbol]
			if len(stack) == 0 {
				continue
			}
			buy := stack[len(stack)-1]
			open[t.Symbol] = stack[:len(stack)-1]

			shares := t.Shares
			if buy.Shares < shares {
				shares = buy.Shares
			}
			trips = append(trips, roundTrip{
				symbol: t.Symbol,
				pnl:    (t.Price - buy.Price) * shares,
			})
		}
	}
	return trips
}

// symbolPerformance aggregates each symbol's signal subset, round-trip win
// rate, and allocation share of the final portfolio value.
func symbolPerformance(res *Result, pf *portfolio.Portfolio, prices map[string]float64) map[string]SymbolPerformance {
	perf := make(map[string]SymbolPerformance, len(res.Symbols))
	for _, sym := range res.Symbols {
		perf[sym] = SymbolPerformance{Symbol: sym}
	}

	for _, sig := range res.Signals {
		p := perf[sig.Symbol]
		p.Symbol = sig.Symbol
		p.Signals++
		perf[sig.Symbol] = p
	}
	for _, t := range res.Trades {
		p := perf[t.Symbol]
		p.Symbol = t.Symbol
		p.Trades++
		perf[t.Symbol] = p
	}
	for _, rt := range roundTrips(res.Trades) {
		p := perf[rt.symbol]
		if rt.pnl > 0 {
			p.WinningTrades++
		} else {
			p.LosingTrades++
		}
		perf[rt.symbol] = p
	}

	for sym, p := range perf {
		if closed := p.WinningTrades + p.LosingTrades; closed > 0 {
			p.WinRate = float64(p.WinningTrades) / float64(closed) * 100
		}
		if res.EndingValue > 0 {
			pos := pf.Position(sym)
			price, ok := prices[sym]
			if !ok || price <= 0 {
				price = pos.AvgPrice
			}
			p.AllocationPct = pos.MarketValue(price) / res.EndingValue * 100
		}
		perf[sym] = p
	}
	return perf
}

// diversificationRatio scores how evenly the final position values are spread
// across symbols, using a Herfindahl-Hirschman index normalized against the
// equal-weight ideal. Zero for single-symbol or fully concentrated books.
func diversificationRatio(pf *portfolio.Portfolio, prices map[string]float64) float64 {
	positions := pf.Positions()
	if len(positions) < 2 {
		return 0
	}

	var total float64
	values := make(map[string]float64, len(positions))
	for sym, pos := range positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = pos.AvgPrice
		}
		v := pos.MarketValue(price)
		values[sym] = v
		total += v
	}
	if total <= 0 {
		return 0
	}

	var hhi float64
	for _, v := range values {
		w := v / total
		hhi += w * w
	}

	n := float64(len(positions))
	ideal := 1 / n
	if hhi >= 1 {
		return 0
	}
	return 1 - (hhi-ideal)/(1-ideal)
}
