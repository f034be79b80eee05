package marketdata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/parkerwe/hindcast/internal/core"
)

// Row is one raw tabular price record with loosely named fields.
type Row map[string]any

// Alternate field names accepted per column, checked in order.
var fieldAliases = map[string][]string{
	"date":   {"date", "time", "timestamp", "day"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c", "adj_close", "adjclose"},
	"volume": {"volume", "vol", "v"},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// ParseRows converts raw rows into validated bars, sorted input order
// preserved. Unparseable rows are rejected individually and reported; a bad
// row never fails the whole batch.
func ParseRows(symbol string, rows []Row) ([]core.Bar, []error) {
	bars := make([]core.Bar, 0, len(rows))
	var rejected []error

	for i, row := range rows {
		bar, err := parseRow(symbol, row)
		if err != nil {
			rejected = append(rejected, core.WrapError(core.ErrMalformedRow, fmt.Errorf("row %d: %w", i, err)))
			continue
		}
		bars = append(bars, bar)
	}

	return bars, rejected
}

func parseRow(symbol string, row Row) (core.Bar, error) {
	lowered := make(map[string]any, len(row))
	for k, v := range row {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	date, err := lookupDate(lowered)
	if err != nil {
		return core.Bar{}, err
	}

	closePrice, found, err := lookupFloat(lowered, "close")
	if err != nil {
		return core.Bar{}, err
	}
	if !found {
		return core.Bar{}, fmt.Errorf("no close field")
	}
	if closePrice <= 0 {
		return core.Bar{}, fmt.Errorf("close %v must be positive", closePrice)
	}

	// Open/high/low default to the close when absent; volume defaults to 0.
	open, err := lookupFloatDefault(lowered, "open", closePrice)
	if err != nil {
		return core.Bar{}, err
	}
	high, err := lookupFloatDefault(lowered, "high", closePrice)
	if err != nil {
		return core.Bar{}, err
	}
	low, err := lookupFloatDefault(lowered, "low", closePrice)
	if err != nil {
		return core.Bar{}, err
	}
	volume, err := lookupFloatDefault(lowered, "volume", 0)
	if err != nil {
		return core.Bar{}, err
	}

	return core.Bar{
		Symbol: symbol,
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: int64(volume),
	}, nil
}

func lookupDate(row map[string]any) (time.Time, error) {
	for _, alias := range fieldAliases["date"] {
		v, ok := row[alias]
		if !ok {
			continue
		}
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, strings.TrimSpace(d)); err == nil {
					return parsed, nil
				}
			}
			return time.Time{}, fmt.Errorf("unparseable date %q", d)
		}
	}
	return time.Time{}, fmt.Errorf("no date field")
}

func lookupFloat(row map[string]any, field string) (float64, bool, error) {
	for _, alias := range fieldAliases[field] {
		v, ok := row[alias]
		if !ok {
			continue
		}
		f, err := toFloat(v, field)
		return f, true, err
	}
	return 0, false, nil
}

// lookupFloatDefault falls back to def when the field is absent, but a field
// that is present yet unparseable still rejects the row.
func lookupFloatDefault(row map[string]any, field string, def float64) (float64, error) {
	v, found, err := lookupFloat(row, field)
	if err != nil {
		return 0, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

func toFloat(v any, field string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable %s %q", field, n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported %s type %T", field, v)
	}
}
