package marketdata

import (
	"testing"
	"time"
)

func TestParseRows_StandardFields(t *testing.T) {
	rows := []Row{
		{"date": "2024-01-02", "open": 100.0, "high": 105.0, "low": 99.0, "close": 102.0, "volume": 1000.0},
		{"date": "2024-01-03", "open": 102.0, "high": 108.0, "low": 101.0, "close": 106.0, "volume": 1200.0},
	}

	bars, rejected := ParseRows("AAPL", rows)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", rejected)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "AAPL" || bars[0].Close != 102 || bars[0].Volume != 1000 {
		t.Errorf("bar[0] = %+v", bars[0])
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !bars[0].Date.Equal(want) {
		t.Errorf("date = %v, want %v", bars[0].Date, want)
	}
}

func TestParseRows_AlternateFieldNames(t *testing.T) {
	rows := []Row{
		{"time": "2024-01-02", "o": "100", "h": "105", "l": "99", "c": "102", "vol": "1000"},
		{"timestamp": "2024-01-03", "adj_close": 106.0},
	}

	bars, rejected := ParseRows("MSFT", rows)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", rejected)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Open != 100 || bars[0].Close != 102 {
		t.Errorf("bar[0] = %+v", bars[0])
	}
	// Missing OHLV fields default to the close / zero volume
	if bars[1].Open != 106 || bars[1].High != 106 || bars[1].Volume != 0 {
		t.Errorf("bar[1] = %+v", bars[1])
	}
}

func TestParseRows_RejectsBadRowsIndividually(t *testing.T) {
	rows := []Row{
		{"date": "2024-01-02", "close": 102.0},
		{"date": "not-a-date", "close": 103.0},
		{"date": "2024-01-04", "close": "garbage"},
		{"date": "2024-01-05"},               // no close at all
		{"date": "2024-01-08", "close": -5.0}, // non-positive close
		{"date": "2024-01-09", "close": 108.0},
	}

	bars, rejected := ParseRows("AAPL", rows)
	if len(bars) != 2 {
		t.Errorf("got %d bars, want 2 survivors", len(bars))
	}
	if len(rejected) != 4 {
		t.Errorf("got %d rejections, want 4", len(rejected))
	}
}

func TestParseRows_PresentButUnparseableFieldRejects(t *testing.T) {
	rows := []Row{
		{"date": "2024-01-02", "close": 100.0, "volume": "n/a"},
	}
	bars, rejected := ParseRows("AAPL", rows)
	if len(bars) != 0 || len(rejected) != 1 {
		t.Errorf("a present-but-bad optional field must reject the row: bars=%d rejected=%d", len(bars), len(rejected))
	}
}

func TestParseRows_MixedCaseHeadersAndTimeValues(t *testing.T) {
	rows := []Row{
		{"Date": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "Close": 55.5},
	}
	bars, rejected := ParseRows("GOOG", rows)
	if len(rejected) != 0 || len(bars) != 1 {
		t.Fatalf("bars=%d rejected=%v", len(bars), rejected)
	}
	if bars[0].Close != 55.5 {
		t.Errorf("close = %v", bars[0].Close)
	}
}
