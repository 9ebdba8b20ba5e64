package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minwoo-dev/folio/internal/timeseries"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/logger"
)

func testBacktestConfig() config.BacktestConfig {
	return config.BacktestConfig{
		RiskFreeRatePct:    3.5,
		TradingDaysPerYear: 252,
		HomeCurrency:       "KRW",
		FXTickers: map[string]string{
			"USD": "KRW=X",
			"JPY": "JPYKRW=X",
		},
		HomeAssetSuffixes: []string{".KS", ".KQ"},
		HomeAssetTickers:  []string{"^KS11"},
		JPYSuffix:         ".T",
	}
}

func newTestSimulator() *Simulator {
	return NewSimulator(testBacktestConfig(), logger.NewNop())
}

func priceTable(t *testing.T, dates []time.Time, order []string, cols map[string][]float64) *timeseries.Table {
	t.Helper()
	table, err := timeseries.New(dates, order, cols)
	require.NoError(t, err)
	return table
}

func tradingDays(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	d := start
	for i := 0; i < n; i++ {
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// Two assets, 50/50, no rebalancing. Day returns A=[1%,2%,-1%],
// B=[-1%,0%,2%]: day-1 portfolio return is 0, drifted weights become
// 0.505/0.495, day-2 return is 0.0101 and the index reaches ~101.01.
func TestRunDriftScenario(t *testing.T) {
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 4)
	table := priceTable(t, dates, []string{"A", "B", "BM"}, map[string][]float64{
		"A":  {100, 101, 103.02, 101.9898},
		"B":  {100, 99, 99, 100.98},
		"BM": {100, 100, 100, 100},
	})

	holdings := []Holding{
		{Ticker: "A", Weight: 50, Currency: "KRW"},
		{Ticker: "B", Weight: 50, Currency: "KRW"},
	}

	result, err := newTestSimulator().Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqNone}, false)
	require.NoError(t, err)
	require.Equal(t, 3, result.Len())

	assert.InDelta(t, 0.0, result.DailyReturns[0], 1e-9)
	assert.InDelta(t, 0.0101, result.DailyReturns[1], 1e-6)

	assert.InDelta(t, 100.0, result.Portfolio[0], 1e-6)
	assert.InDelta(t, 101.01, result.Portfolio[1], 1e-3)
}

// The simulator normalizes whatever positive weights it is given:
// scaling every weight by the same factor must not change the result.
func TestRunWeightNormalization(t *testing.T) {
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 4)
	table := priceTable(t, dates, []string{"A", "B", "BM"}, map[string][]float64{
		"A":  {100, 103, 105, 102},
		"B":  {200, 198, 202, 209},
		"BM": {100, 101, 102, 103},
	})

	run := func(scale float64) *Result {
		holdings := []Holding{
			{Ticker: "A", Weight: 60 * scale, Currency: "KRW"},
			{Ticker: "B", Weight: 40 * scale, Currency: "KRW"},
		}
		result, err := newTestSimulator().Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqNone}, false)
		require.NoError(t, err)
		return result
	}

	base := run(1)
	scaled := run(7.3)

	for i := range base.DailyReturns {
		assert.InDelta(t, base.DailyReturns[i], scaled.DailyReturns[i], 1e-12)
	}
}

// With no rebalancing the drift update must reproduce pure buy-and-hold
// compounding: V_t = sum_i w0_i * prod(1+r_i).
func TestRunNoRebalanceEqualsBuyAndHold(t *testing.T) {
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 6)
	table := priceTable(t, dates, []string{"A", "B", "BM"}, map[string][]float64{
		"A":  {100, 104, 101, 105, 110, 108},
		"B":  {50, 49, 51, 52, 50, 53},
		"BM": {100, 100, 100, 100, 100, 100},
	})

	holdings := []Holding{
		{Ticker: "A", Weight: 70, Currency: "KRW"},
		{Ticker: "B", Weight: 30, Currency: "KRW"},
	}

	result, err := newTestSimulator().Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqNone}, false)
	require.NoError(t, err)

	for i := range result.Dates {
		want := 0.7*result.Assets["A"][i] + 0.3*result.Assets["B"][i]
		assert.InDelta(t, want, result.Portfolio[i], 1e-9, "day %d", i)
	}
}

// On a trigger-month transition the current weights must reset fully to
// target: the first day of the new month compounds at target weights,
// not drifted ones.
func TestRunMonthlyRebalanceResetsWeights(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	table := priceTable(t, dates, []string{"A", "B", "BM"}, map[string][]float64{
		"A":  {100, 110, 110, 121},
		"B":  {100, 100, 100, 100},
		"BM": {100, 100, 100, 100},
	})

	holdings := []Holding{
		{Ticker: "A", Weight: 50, Currency: "KRW"},
		{Ticker: "B", Weight: 50, Currency: "KRW"},
	}

	sim := newTestSimulator()

	// Without rebalancing, A has drifted to 0.55/1.05 of the book by
	// February: the 10% day contributes ~5.238%.
	drifted, err := sim.Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqNone}, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*1.1/1.05*0.1, drifted.DailyReturns[2], 1e-9)

	// Monthly rebalancing resets to 50/50 on the month transition.
	rebalanced, err := sim.Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqMonthly, AnchorMonth: time.January}, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, rebalanced.DailyReturns[2], 1e-9)

	// A yearly policy anchored away from February must not trigger.
	offAnchor, err := sim.Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqYearly, AnchorMonth: time.March}, false)
	require.NoError(t, err)
	assert.InDelta(t, drifted.DailyReturns[2], offAnchor.DailyReturns[2], 1e-12)
}

// The benchmark index is a pure cumulative product of its own returns:
// portfolio composition must never affect it.
func TestRunBenchmarkIndependence(t *testing.T) {
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 4)
	table := priceTable(t, dates, []string{"A", "B", "BM"}, map[string][]float64{
		"A":  {100, 103, 105, 102},
		"B":  {200, 198, 202, 209},
		"BM": {100, 102, 101, 104},
	})

	sim := newTestSimulator()

	first, err := sim.Run(table,
		[]Holding{{Ticker: "A", Weight: 100, Currency: "KRW"}},
		"BM", RebalancePolicy{Frequency: FreqNone}, false)
	require.NoError(t, err)

	second, err := sim.Run(table,
		[]Holding{{Ticker: "A", Weight: 30, Currency: "KRW"}, {Ticker: "B", Weight: 70, Currency: "KRW"}},
		"BM", RebalancePolicy{Frequency: FreqMonthly, AnchorMonth: time.January}, false)
	require.NoError(t, err)

	assert.Equal(t, first.Benchmark, second.Benchmark)

	// Index base invariant: first row is 100*(1+first return).
	assert.InDelta(t, 100*(1+first.BenchmarkReturns[0]), first.Benchmark[0], 1e-9)
	assert.InDelta(t, 100*(1+first.DailyReturns[0]), first.Portfolio[0], 1e-9)
}

func TestRunEmptyInputs(t *testing.T) {
	sim := newTestSimulator()
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 3)
	table := priceTable(t, dates, []string{"A", "BM"}, map[string][]float64{
		"A":  {100, 101, 102},
		"BM": {100, 100, 100},
	})
	holdings := []Holding{{Ticker: "A", Weight: 100, Currency: "KRW"}}

	t.Run("single row table has no returns", func(t *testing.T) {
		short := priceTable(t, dates[:1], []string{"A", "BM"}, map[string][]float64{
			"A": {100}, "BM": {100},
		})
		_, err := sim.Run(short, holdings, "BM", RebalancePolicy{}, false)
		assert.True(t, errors.Is(err, ErrEmptyResult))
	})

	t.Run("missing benchmark", func(t *testing.T) {
		_, err := sim.Run(table, holdings, "QQQ", RebalancePolicy{}, false)
		assert.True(t, errors.Is(err, ErrEmptyResult))
	})

	t.Run("zero total weight", func(t *testing.T) {
		_, err := sim.Run(table, []Holding{{Ticker: "A", Weight: 0, Currency: "KRW"}}, "BM", RebalancePolicy{}, false)
		assert.True(t, errors.Is(err, ErrEmptyResult))
	})

	t.Run("all holdings unknown", func(t *testing.T) {
		_, err := sim.Run(table, []Holding{{Ticker: "ZZZ", Weight: 100, Currency: "KRW"}}, "BM", RebalancePolicy{}, false)
		assert.True(t, errors.Is(err, ErrEmptyResult))
	})
}

func TestRunDropsUnknownHoldings(t *testing.T) {
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 3)
	table := priceTable(t, dates, []string{"A", "BM"}, map[string][]float64{
		"A":  {100, 110, 121},
		"BM": {100, 100, 100},
	})

	holdings := []Holding{
		{Ticker: "A", Weight: 40, Currency: "KRW"},
		{Ticker: "GONE", Weight: 60, Currency: "KRW"},
	}

	result, err := newTestSimulator().Run(table, holdings, "BM", RebalancePolicy{Frequency: FreqNone}, false)
	require.NoError(t, err)

	// A's weight renormalizes to 1.0 after GONE is dropped.
	assert.InDelta(t, 0.10, result.DailyReturns[0], 1e-9)
	assert.Equal(t, []string{"A"}, result.AssetOrder)
}

func TestRunFXConversion(t *testing.T) {
	dates := tradingDays(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 2)

	t.Run("USD holding converted", func(t *testing.T) {
		table := priceTable(t, dates, []string{"AAPL", "KRW=X", "005930.KS"}, map[string][]float64{
			"AAPL":      {100, 110},  // +10% in USD
			"KRW=X":     {1000, 1100}, // won weakens 10%
			"005930.KS": {70000, 70000},
		})
		holdings := []Holding{{Ticker: "AAPL", Weight: 100, Currency: "USD"}}

		result, err := newTestSimulator().Run(table, holdings, "005930.KS", RebalancePolicy{}, true)
		require.NoError(t, err)

		// 1.1 * 1.1 - 1 = 21% in KRW terms.
		assert.InDelta(t, 0.21, result.DailyReturns[0], 1e-9)
		// Home-currency benchmark stays unconverted.
		assert.InDelta(t, 0.0, result.BenchmarkReturns[0], 1e-9)
	})

	t.Run("missing FX series skips conversion", func(t *testing.T) {
		table := priceTable(t, dates, []string{"AAPL", "005930.KS"}, map[string][]float64{
			"AAPL":      {100, 110},
			"005930.KS": {70000, 70000},
		})
		holdings := []Holding{{Ticker: "AAPL", Weight: 100, Currency: "USD"}}

		result, err := newTestSimulator().Run(table, holdings, "005930.KS", RebalancePolicy{}, true)
		require.NoError(t, err)

		// Unconverted: plain 10% USD return.
		assert.InDelta(t, 0.10, result.DailyReturns[0], 1e-9)
	})

	t.Run("foreign benchmark converted", func(t *testing.T) {
		table := priceTable(t, dates, []string{"005930.KS", "SPY", "KRW=X"}, map[string][]float64{
			"005930.KS": {70000, 70000},
			"SPY":       {500, 500},
			"KRW=X":     {1000, 1050},
		})
		holdings := []Holding{{Ticker: "005930.KS", Weight: 100, Currency: "KRW"}}

		result, err := newTestSimulator().Run(table, holdings, "SPY", RebalancePolicy{}, true)
		require.NoError(t, err)

		// Flat SPY still gains 5% in KRW terms.
		assert.InDelta(t, 0.05, result.BenchmarkReturns[0], 1e-9)
	})

	t.Run("JPY benchmark uses yen series", func(t *testing.T) {
		table := priceTable(t, dates, []string{"005930.KS", "7203.T", "JPYKRW=X"}, map[string][]float64{
			"005930.KS": {70000, 70000},
			"7203.T":    {2000, 2000},
			"JPYKRW=X":  {9.0, 9.18},
		})
		holdings := []Holding{{Ticker: "005930.KS", Weight: 100, Currency: "KRW"}}

		result, err := newTestSimulator().Run(table, holdings, "7203.T", RebalancePolicy{}, true)
		require.NoError(t, err)

		assert.InDelta(t, 0.02, result.BenchmarkReturns[0], 1e-9)
	})

	t.Run("benchmark held in portfolio converts once", func(t *testing.T) {
		table := priceTable(t, dates, []string{"AAPL", "KRW=X"}, map[string][]float64{
			"AAPL":  {100, 110},
			"KRW=X": {1000, 1100},
		})
		holdings := []Holding{{Ticker: "AAPL", Weight: 100, Currency: "USD"}}

		result, err := newTestSimulator().Run(table, holdings, "AAPL", RebalancePolicy{}, true)
		require.NoError(t, err)

		assert.InDelta(t, 0.21, result.DailyReturns[0], 1e-9)
		assert.InDelta(t, 0.21, result.BenchmarkReturns[0], 1e-9)
	})
}

func TestFrequencyMonths(t *testing.T) {
	tests := []struct {
		name   string
		freq   Frequency
		anchor time.Month
		want   []time.Month
	}{
		{"none", FreqNone, time.March, nil},
		{"yearly", FreqYearly, time.March, []time.Month{time.March}},
		{"semi-annual wraps", FreqSemiAnnual, time.September, []time.Month{time.September, time.March}},
		{"quarterly wraps", FreqQuarterly, time.November, []time.Month{time.November, time.February, time.May, time.August}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.freq.Months(tt.anchor)
			assert.Len(t, got, len(tt.want))
			for _, m := range tt.want {
				assert.True(t, got[m], "month %s should trigger", m)
			}
		})
	}

	assert.Len(t, FreqMonthly.Months(time.June), 12)
}

func TestParseFrequency(t *testing.T) {
	for _, name := range []string{"None", "Yearly", "Semi-Annually", "Quarterly", "Monthly"} {
		f, err := ParseFrequency(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}

	_, err := ParseFrequency("Weekly")
	assert.Error(t, err)
}
