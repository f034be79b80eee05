package marketdata

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parkerwe/hindcast/internal/core"
)

// CSV is a Source reading one <SYMBOL>.csv file per symbol from a directory.
// Files carry a header row; column names go through the same alias-tolerant
// conversion as any other tabular input. Parsed series are cached.
type CSV struct {
	dir string

	mu    sync.Mutex
	cache map[string][]core.Bar
}

// NewCSV creates a CSV source rooted at dir.
func NewCSV(dir string) *CSV {
	return &CSV{
		dir:   dir,
		cache: make(map[string][]core.Bar),
	}
}

func (c *CSV) path(symbol string) string {
	return filepath.Join(c.dir, symbol+".csv")
}

// load reads and converts the symbol's file, tolerating individually bad rows.
func (c *CSV) load(symbol string) ([]core.Bar, error) {
	c.mu.Lock()
	if bars, ok := c.cache[symbol]; ok {
		c.mu.Unlock()
		return bars, nil
	}
	c.mu.Unlock()

	f, err := os.Open(c.path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.Wrapf(core.ErrSymbolNotFound, "no data file for %q", symbol)
		}
		return nil, core.WrapError(core.ErrNoData, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, err)
	}
	if len(records) < 2 {
		return nil, core.Wrapf(core.ErrNoData, "%s.csv has no data rows", symbol)
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[strings.TrimSpace(col)] = record[i]
			}
		}
		rows = append(rows, row)
	}

	bars, _ := ParseRows(symbol, rows)
	if len(bars) == 0 {
		return nil, core.Wrapf(core.ErrNoData, "%s.csv produced no valid bars", symbol)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.mu.Lock()
	c.cache[symbol] = bars
	c.mu.Unlock()
	return bars, nil
}

func (c *CSV) HistoricalBars(symbol string, start, end time.Time) ([]core.Bar, error) {
	bars, err := c.load(symbol)
	if err != nil {
		return nil, err
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

func (c *CSV) SymbolExists(symbol string) bool {
	if _, err := os.Stat(c.path(symbol)); err == nil {
		return true
	}
	return false
}

// IsTradeable bounds eligibility by the file's first and last bar dates.
func (c *CSV) IsTradeable(symbol string, date time.Time) bool {
	bars, err := c.load(symbol)
	if err != nil || len(bars) == 0 {
		return false
	}
	return !date.Before(bars[0].Date) && !date.After(bars[len(bars)-1].Date)
}

func (c *CSV) AvailableSymbols() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}

	var symbols []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".csv"))
	}
	sort.Strings(symbols)
	return symbols
}
