package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetricsOneYearScenario(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	m := ComputeMetrics([]float64{0.01, 0.02, -0.005}, 150, start, end, 3.5, 252)

	assert.InDelta(t, 50.0, m.TotalReturn, 1e-9)
	// 2020 is a leap year so the span is marginally over one 365.25-day
	// year; CAGR lands just under 50%.
	assert.InDelta(t, 50.0, m.CAGR, 0.5)
}

func TestComputeMetricsTotalReturnConsistency(t *testing.T) {
	m := ComputeMetrics(nil, 137.5,
		time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		3.5, 252)

	assert.InDelta(t, (137.5/100-1)*100, m.TotalReturn, 1e-12)
}

func TestComputeMetricsZeroSpan(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	same := ComputeMetrics([]float64{0.01}, 101, day, day, 3.5, 252)
	assert.Equal(t, 0.0, same.CAGR)

	inverted := ComputeMetrics([]float64{0.01}, 101, day, day.AddDate(0, 0, -10), 3.5, 252)
	assert.Equal(t, 0.0, inverted.CAGR)
}

func TestComputeMetricsMaxDrawdown(t *testing.T) {
	// Index path: 110 -> 88 -> 105.6; trough is 20% below the peak.
	returns := []float64{0.10, -0.20, 0.20}
	m := ComputeMetrics(returns, 105.6,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		3.5, 252)

	assert.InDelta(t, -20.0, m.MaxDrawdown, 1e-9)
}

func TestComputeMetricsDrawdownBounds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	// Monotonically non-decreasing series never draws down.
	up := ComputeMetrics([]float64{0.01, 0.0, 0.02}, 103, start, end, 3.5, 252)
	assert.Equal(t, 0.0, up.MaxDrawdown)

	// Drawdown is bounded by [-100, 0].
	crash := ComputeMetrics([]float64{-0.5, -0.5, -0.9}, 2.5, start, end, 3.5, 252)
	assert.LessOrEqual(t, crash.MaxDrawdown, 0.0)
	assert.GreaterOrEqual(t, crash.MaxDrawdown, -100.0)
}

func TestComputeMetricsVolatility(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	// Sample stddev of {0.01, -0.01} is sqrt(2)*0.01.
	m := ComputeMetrics([]float64{0.01, -0.01}, 100, start, end, 3.5, 252)
	want := math.Sqrt2 * 0.01 * math.Sqrt(252) * 100
	assert.InDelta(t, want, m.Volatility, 1e-9)
}

func TestComputeMetricsZeroVolatility(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	// Constant returns have zero sample stddev; Sharpe falls back to 0
	// instead of dividing by zero.
	m := ComputeMetrics([]float64{0.0, 0.0, 0.0}, 100, start, end, 3.5, 252)
	assert.Equal(t, 0.0, m.Volatility)
	assert.Equal(t, 0.0, m.Sharpe)

	single := ComputeMetrics([]float64{0.01}, 101, start, end, 3.5, 252)
	assert.Equal(t, 0.0, single.Volatility)
	assert.Equal(t, 0.0, single.Sharpe)
}

func TestComputeMetricsSharpe(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	m := ComputeMetrics([]float64{0.01, -0.01, 0.02}, 150, start, end, 3.5, 252)
	assert.Greater(t, m.Volatility, 0.0)
	assert.InDelta(t, (m.CAGR-3.5)/m.Volatility, m.Sharpe, 1e-12)
}
