package indicator

import (
	"fmt"

	"github.com/parkerwe/hindcast/internal/core"
)

// CrossoverSignals scans a short and a long SMA for sign changes between
// consecutive days and emits a buy signal at the bar where the short average
// crosses above the long average (golden cross) and a sell signal where it
// crosses below (death cross).
func CrossoverSignals(bars []core.Bar, shortPeriod, longPeriod int) ([]core.Signal, error) {
	if shortPeriod >= longPeriod {
		return nil, core.Wrapf(core.ErrConfigInvalid, "short period %d must be below long period %d", shortPeriod, longPeriod)
	}

	closes := Closes(bars)
	short, err := SMA(closes, shortPeriod)
	if err != nil {
		return nil, err
	}
	long, err := SMA(closes, longPeriod)
	if err != nil {
		return nil, err
	}

	var signals []core.Signal
	// Bar i maps to short[i-shortPeriod+1] and long[i-longPeriod+1]; both
	// moving averages exist from bar longPeriod-1 onward.
	for i := longPeriod; i < len(bars); i++ {
		currShort := short[i-shortPeriod+1]
		prevShort := short[i-shortPeriod]
		currLong := long[i-longPeriod+1]
		prevLong := long[i-longPeriod]

		switch {
		case prevShort <= prevLong && currShort > currLong:
			signals = append(signals, core.Signal{
				Symbol:     bars[i].Symbol,
				Action:     core.ActionBuy,
				Price:      bars[i].Close,
				Date:       bars[i].Date,
				Confidence: crossConfidence(currShort, currLong),
				Reason:     fmt.Sprintf("Golden Cross: SMA%d (%.2f) crossed above SMA%d (%.2f)", shortPeriod, currShort, longPeriod, currLong),
			})
		case prevShort >= prevLong && currShort < currLong:
			signals = append(signals, core.Signal{
				Symbol:     bars[i].Symbol,
				Action:     core.ActionSell,
				Price:      bars[i].Close,
				Date:       bars[i].Date,
				Confidence: crossConfidence(currShort, currLong),
				Reason:     fmt.Sprintf("Death Cross: SMA%d (%.2f) crossed below SMA%d (%.2f)", shortPeriod, currShort, longPeriod, currLong),
			})
		}
	}

	return signals, nil
}

// ThresholdSignals scans an RSI series and emits a buy signal where the RSI
// rises back through the oversold threshold and a sell signal where it falls
// back through the overbought threshold.
func ThresholdSignals(bars []core.Bar, period int, oversold, overbought float64) ([]core.Signal, error) {
	if oversold <= 0 || oversold >= overbought || overbought >= 100 {
		return nil, core.Wrapf(core.ErrConfigInvalid, "thresholds must satisfy 0 < oversold (%.1f) < overbought (%.1f) < 100", oversold, overbought)
	}

	rsi, err := RSI(Closes(bars), period)
	if err != nil {
		return nil, err
	}

	var signals []core.Signal
	// rsi[j] maps to bar j+period.
	for j := 1; j < len(rsi); j++ {
		bar := bars[j+period]
		switch {
		case rsi[j-1] < oversold && rsi[j] >= oversold:
			signals = append(signals, core.Signal{
				Symbol:     bar.Symbol,
				Action:     core.ActionBuy,
				Price:      bar.Close,
				Date:       bar.Date,
				Confidence: thresholdConfidence(rsi[j-1], oversold),
				Reason:     fmt.Sprintf("RSI%d recovered through oversold: %.1f -> %.1f (threshold %.1f)", period, rsi[j-1], rsi[j], oversold),
			})
		case rsi[j-1] > overbought && rsi[j] <= overbought:
			signals = append(signals, core.Signal{
				Symbol:     bar.Symbol,
				Action:     core.ActionSell,
				Price:      bar.Close,
				Date:       bar.Date,
				Confidence: thresholdConfidence(rsi[j-1], overbought),
				Reason:     fmt.Sprintf("RSI%d dropped through overbought: %.1f -> %.1f (threshold %.1f)", period, rsi[j-1], rsi[j], overbought),
			})
		}
	}

	return signals, nil
}

// crossConfidence returns higher confidence for larger divergence.
func crossConfidence(fast, slow float64) float64 {
	if slow == 0 {
		return 0.5
	}
	diff := (fast - slow) / slow
	if diff < 0 {
		diff = -diff
	}

	confidence := 0.5 + diff*10
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}

// thresholdConfidence returns higher confidence the deeper the RSI had gone
// past the threshold before reverting.
func thresholdConfidence(prev, threshold float64) float64 {
	depth := prev - threshold
	if depth < 0 {
		depth = -depth
	}

	confidence := 0.5 + depth/100
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
