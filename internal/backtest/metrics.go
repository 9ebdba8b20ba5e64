package backtest

import (
	"math"
	"time"

	"github.com/minwoo-dev/folio/internal/timeseries"
)

// Metrics is the summary statistics tuple for one return series. All
// values except Sharpe are percentages.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
}

// ComputeMetrics derives the five summary statistics from a daily
// return series and its final index value (base 100). It is pure and
// is called once per series: portfolio and benchmark get independent
// tuples.
//
// The drawdown is recomputed from the full return path rather than the
// endpoint so intra-period troughs are not lost. Degenerate inputs
// (zero span, zero volatility) fall back to zero instead of failing.
func ComputeMetrics(
	dailyReturns []float64,
	finalValue float64,
	startDate, endDate time.Time,
	riskFreeRatePct float64,
	tradingDaysPerYear int,
) Metrics {
	m := Metrics{
		TotalReturn: finalValue - 100,
	}

	years := endDate.Sub(startDate).Hours() / 24 / 365.25
	if years > 0 {
		m.CAGR = (math.Pow(finalValue/100, 1/years) - 1) * 100
	}

	m.MaxDrawdown = maxDrawdown(dailyReturns)
	m.Volatility = sampleStdDev(dailyReturns) * math.Sqrt(float64(tradingDaysPerYear)) * 100

	if m.Volatility > 0 {
		m.Sharpe = (m.CAGR - riskFreeRatePct) / m.Volatility
	}

	return m
}

// maxDrawdown returns the largest peak-to-trough decline of the
// compounded return path, in percent (always <= 0).
func maxDrawdown(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	index := timeseries.CumulativeIndex(dailyReturns, 1)

	worst := 0.0
	peak := index[0]
	for _, v := range index {
		if v > peak {
			peak = v
		}
		dd := v/peak - 1
		if dd < worst {
			worst = dd
		}
	}

	return worst * 100
}

// sampleStdDev returns the sample standard deviation (n-1 divisor)
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
