// Package marketdata provides historical price data access for backtests.
package marketdata

import (
	"time"

	"github.com/parkerwe/hindcast/internal/core"
)

// Source is the historical data collaborator. Implementations return either
// a value or a structured failure; callers never assume success.
type Source interface {
	// HistoricalBars returns the symbol's daily bars inside [start, end],
	// ordered by date.
	HistoricalBars(symbol string, start, end time.Time) ([]core.Bar, error)

	// SymbolExists reports whether the symbol is known to the source.
	SymbolExists(symbol string) bool

	// IsTradeable reports whether the symbol could be traded on the date:
	// false before listing and after delisting.
	IsTradeable(symbol string, date time.Time) bool

	// AvailableSymbols lists every symbol the source can serve.
	AvailableSymbols() []string
}
