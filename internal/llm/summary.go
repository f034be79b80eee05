package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/parkerwe/hindcast/internal/backtest"
)

const summarySystemPrompt = `You are a quantitative trading analyst. Summarize backtest results
for a portfolio manager: lead with the outcome, call out risk figures that deserve attention,
and keep it under 200 words. Do not invent numbers that are not in the report.`

// Summarizer produces a natural-language summary of a finished backtest
// report through a configured LLM provider.
type Summarizer struct {
	provider Provider
}

// NewSummarizer wraps the provider.
func NewSummarizer(provider Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Summarize renders the report into a prompt and asks the provider for a
// summary.
func (s *Summarizer) Summarize(ctx context.Context, rep *backtest.Report) (string, error) {
	resp, err := s.provider.Chat(ctx, ChatRequest{
		SystemPrompt: summarySystemPrompt,
		Messages: []Message{
			{Role: "user", Content: reportPrompt(rep)},
		},
		MaxTokens:   512,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarizing report: %w", err)
	}
	return resp.Content, nil
}

// reportPrompt flattens the report into the facts the model may use.
func reportPrompt(rep *backtest.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Backtest report %s\n", rep.RunID)
	fmt.Fprintf(&b, "Strategy: %s\n", rep.Strategy)
	fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(rep.Symbols, ", "))
	fmt.Fprintf(&b, "Period: %s to %s\n", rep.StartDate, rep.EndDate)
	fmt.Fprintf(&b, "Starting capital: $%.2f\n", rep.StartingCapital)
	fmt.Fprintf(&b, "Ending value: $%.2f\n", rep.EndingValue)
	fmt.Fprintf(&b, "Total return: %.2f%%\n", rep.TotalReturnPct)
	fmt.Fprintf(&b, "Annualized return: %.4f\n", rep.PerformanceMetrics.AnnualizedReturn)
	fmt.Fprintf(&b, "Sharpe ratio: %.2f\n", rep.SharpeRatio)
	fmt.Fprintf(&b, "Max drawdown: %.2f%%\n", rep.MaxDrawdown)
	fmt.Fprintf(&b, "Volatility: %.2f%%\n", rep.PerformanceMetrics.Volatility)
	fmt.Fprintf(&b, "Trades: %d total, %d winning, %d losing (win rate %.1f%%)\n",
		rep.TotalTrades, rep.WinningTrades, rep.LosingTrades, rep.WinRate)
	fmt.Fprintf(&b, "Profit factor: %.2f\n", rep.PerformanceMetrics.ProfitFactor)
	fmt.Fprintf(&b, "Diversification ratio: %.2f\n", rep.PerformanceMetrics.DiversificationRatio)

	if len(rep.SymbolPerformance) > 0 {
		b.WriteString("\nPer-symbol performance:\n")
		symbols := make([]string, 0, len(rep.SymbolPerformance))
		for sym := range rep.SymbolPerformance {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			p := rep.SymbolPerformance[sym]
			fmt.Fprintf(&b, "- %s: %d signals, %d trades, win rate %.1f%%, %.1f%% of final value\n",
				sym, p.Signals, p.Trades, p.WinRate, p.AllocationPct)
		}
	}

	b.WriteString("\nWrite the summary now.")
	return b.String()
}
