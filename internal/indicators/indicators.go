// Package indicators implements technical analysis transforms over a
// single price series: EMA, Bollinger Bands, RSI, MACD and VWAP.
//
// Every function is a pure, deterministic transform returning series
// aligned with its input. Positions where not enough history has
// accumulated hold math.NaN(); the per-function comments state exactly
// how many leading values are undefined.
package indicators

import (
	"math"
)

// EMA computes the exponential moving average with smoothing factor
// alpha = 2/(period+1), seeded by the first observation. Every output
// position is defined.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || period <= 0 {
		return out
	}

	alpha := 2.0 / (float64(period) + 1.0)

	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}

	return out
}

// BollingerBands computes the rolling mean and +/- k sample standard
// deviations over period. The first period-1 positions of all three
// bands are NaN.
func BollingerBands(values []float64, period int, k float64) (upper, middle, lower []float64) {
	n := len(values)
	upper = nanSlice(n)
	middle = nanSlice(n)
	lower = nanSlice(n)

	if period <= 0 || n < period {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		window := values[i-period+1 : i+1]
		m := mean(window)
		s := sampleStdDev(window, m)

		middle[i] = m
		upper[i] = m + k*s
		lower[i] = m - k*s
	}

	return upper, middle, lower
}

// RSI computes the relative strength index using simple rolling means
// of gains and losses over period (not Wilder smoothing). The first
// period positions are NaN: one for the missing first price change,
// period-1 while the rolling window forms.
//
// A window with zero losses saturates at 100; a window with neither
// gains nor losses has no defined strength ratio and yields NaN.
func RSI(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)

	if period <= 0 || n < period+1 {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	var gainSum, lossSum float64
	for i := 1; i < n; i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i < period {
			continue
		}

		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)

		// avgLoss == 0 drives rs to +Inf and RSI to 100; 0/0 stays NaN.
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}

	return out
}

// MACD computes the moving average convergence/divergence: the fast
// EMA minus the slow EMA, its EMA signal line, and their difference.
// All positions are defined because the underlying EMAs are seeded by
// their first observation.
func MACD(values []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)

	macdLine = make([]float64, len(values))
	for i := range macdLine {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}

	signalLine = EMA(macdLine, signal)

	histogram = make([]float64, len(values))
	for i := range histogram {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return macdLine, signalLine, histogram
}

// VWAP computes the cumulative volume-weighted average of the typical
// price (high+low+close)/3. All four series must have equal length.
// Positions where the cumulative volume is still zero are NaN.
func VWAP(highs, lows, closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))

	var cumPV, cumVol float64
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		cumPV += typical * volumes[i]
		cumVol += volumes[i]

		if cumVol == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = cumPV / cumVol
		}
	}

	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
