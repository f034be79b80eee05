// Package indicator provides technical indicators over daily bar series.
package indicator

import (
	"math"

	"github.com/parkerwe/hindcast/internal/core"
)

// SMA calculates the Simple Moving Average using a rolling sum.
// Returns a slice of length len(prices)-period+1, where result[j] is the
// average of the window ending at prices[j+period-1].
func SMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, core.Wrapf(core.ErrConfigInvalid, "sma period must be positive, got %d", period)
	}
	if len(prices) < period {
		return nil, core.Wrapf(core.ErrInsufficientData, "sma(%d) needs %d prices, have %d", period, period, len(prices))
	}

	result := make([]float64, 0, len(prices)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result, nil
}

// EMA calculates the Exponential Moving Average with multiplier 2/(period+1),
// seeded with the first price. Returns one value per input price.
func EMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, core.Wrapf(core.ErrConfigInvalid, "ema period must be positive, got %d", period)
	}
	if len(prices) < period {
		return nil, core.Wrapf(core.ErrInsufficientData, "ema(%d) needs %d prices, have %d", period, period, len(prices))
	}

	multiplier := 2.0 / float64(period+1)
	result := make([]float64, 0, len(prices))

	ema := prices[0]
	result = append(result, ema)
	for i := 1; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result, nil
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
// The first value is seeded from the simple average gain/loss over the first
// `period` changes; subsequent days update the averages incrementally.
// Returns a slice of length len(prices)-period, where result[j] corresponds
// to prices[j+period]. A zero average loss yields RSI 100.
func RSI(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, core.Wrapf(core.ErrConfigInvalid, "rsi period must be positive, got %d", period)
	}
	if len(prices) < period+1 {
		return nil, core.Wrapf(core.ErrInsufficientData, "rsi(%d) needs %d prices, have %d", period, period+1, len(prices))
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	result := make([]float64, 0, len(prices)-period)
	result = append(result, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bands holds Bollinger Band values aligned with the SMA windows.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger calculates Bollinger Bands: SMA(period) ± k standard deviations
// of the same window. Band slices have length len(prices)-period+1.
func Bollinger(prices []float64, period int, k float64) (*Bands, error) {
	middle, err := SMA(prices, period)
	if err != nil {
		return nil, err
	}

	bands := &Bands{
		Middle: middle,
		Upper:  make([]float64, len(middle)),
		Lower:  make([]float64, len(middle)),
	}

	for j, mean := range middle {
		var variance float64
		for _, p := range prices[j : j+period] {
			variance += (p - mean) * (p - mean)
		}
		std := math.Sqrt(variance / float64(period))
		bands.Upper[j] = mean + k*std
		bands.Lower[j] = mean - k*std
	}

	return bands, nil
}

// Closes extracts closing prices from a bar series.
func Closes(bars []core.Bar) []float64 {
	prices := make([]float64, len(bars))
	for i, bar := range bars {
		prices[i] = bar.Close
	}
	return prices
}
