package core

import "time"

// Bar is one trading day's OHLCV record for a symbol.
// Bars are ordered by date within a series and immutable once ingested.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IsValid checks if the bar has the required fields.
func (b Bar) IsValid() bool {
	return b.Symbol != "" && !b.Date.IsZero() && b.Close > 0
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal represents a trading signal from a strategy
type Signal struct {
	Symbol     string
	Action     Action
	Price      float64
	Date       time.Time
	Confidence float64
	Reason     string
	Strategy   string
}

// Actionable reports whether the signal carries an execution obligation.
// Hold signals never do.
func (s Signal) Actionable() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}
