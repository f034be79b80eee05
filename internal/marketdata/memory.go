package marketdata

import (
	"sort"
	"time"

	"github.com/parkerwe/hindcast/internal/core"
)

// listing is a symbol's tradeable window. Zero bounds mean unbounded.
type listing struct {
	listed   time.Time
	delisted time.Time
}

// Memory is an in-process Source backed by preloaded bar series. Listing and
// delisting dates model temporal eligibility.
type Memory struct {
	series   map[string][]core.Bar
	listings map[string]listing
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		series:   make(map[string][]core.Bar),
		listings: make(map[string]listing),
	}
}

// AddBars registers a symbol's bar series, sorting it by date.
func (m *Memory) AddBars(symbol string, bars []core.Bar) {
	sorted := make([]core.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	m.series[symbol] = sorted
}

// SetListing bounds the symbol's tradeable window. A zero time leaves that
// side unbounded.
func (m *Memory) SetListing(symbol string, listed, delisted time.Time) {
	m.listings[symbol] = listing{listed: listed, delisted: delisted}
}

func (m *Memory) HistoricalBars(symbol string, start, end time.Time) ([]core.Bar, error) {
	bars, ok := m.series[symbol]
	if !ok {
		return nil, core.Wrapf(core.ErrSymbolNotFound, "symbol %q not found", symbol)
	}

	var out []core.Bar
	for _, bar := range bars {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	if len(out) == 0 {
		return nil, core.Wrapf(core.ErrNoData, "no %s bars between %s and %s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return out, nil
}

func (m *Memory) SymbolExists(symbol string) bool {
	_, ok := m.series[symbol]
	return ok
}

func (m *Memory) IsTradeable(symbol string, date time.Time) bool {
	if !m.SymbolExists(symbol) {
		return false
	}
	l, ok := m.listings[symbol]
	if !ok {
		return true
	}
	if !l.listed.IsZero() && date.Before(l.listed) {
		return false
	}
	if !l.delisted.IsZero() && date.After(l.delisted) {
		return false
	}
	return true
}

func (m *Memory) AvailableSymbols() []string {
	symbols := make([]string, 0, len(m.series))
	for sym := range m.series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
