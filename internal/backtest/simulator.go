package backtest

import (
	"errors"
	"strings"

	"github.com/minwoo-dev/folio/internal/timeseries"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/logger"
)

// ErrEmptyResult reports input the simulator cannot backtest: an empty
// price table, a missing benchmark column, or a zero total weight.
// Callers surface it to the user instead of retrying.
var ErrEmptyResult = errors.New("backtest input produced an empty result")

// Simulator turns a dense price table plus target weights into a
// realized daily return path, applying rebalancing and FX conversion
// policies. A Simulator is stateless across runs and safe for
// concurrent use.
type Simulator struct {
	cfg    config.BacktestConfig
	logger *logger.Logger
}

// NewSimulator creates a simulator with the given policy constants
func NewSimulator(cfg config.BacktestConfig, log *logger.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		logger: log,
	}
}

// Run simulates the portfolio against the benchmark over the price
// table's date range.
//
// When convertFX is set, every foreign-currency column is multiplied
// element-wise by its conversion series before returns are computed.
// The current weight vector starts at the normalized targets, drifts
// with realized returns, and resets to target on policy trigger
// months.
func (s *Simulator) Run(
	prices *timeseries.Table,
	holdings []Holding,
	benchmarkTicker string,
	policy RebalancePolicy,
	convertFX bool,
) (*Result, error) {
	table := prices
	if convertFX {
		table = s.applyFXConversion(prices, holdings, benchmarkTicker)
	}

	rets := table.PctChange()
	if rets.Len() == 0 {
		return nil, ErrEmptyResult
	}
	if !rets.Has(benchmarkTicker) {
		s.logger.WithField("benchmark", benchmarkTicker).Warn("Benchmark missing from return table")
		return nil, ErrEmptyResult
	}

	// Resolve weights: holdings without a price column are dropped,
	// the survivors are normalized to sum to 1.
	tickers := make([]string, 0, len(holdings))
	weights := make([]float64, 0, len(holdings))
	totalWeight := 0.0
	for _, h := range holdings {
		if !rets.Has(h.Ticker) {
			s.logger.WithField("ticker", h.Ticker).Warn("Holding has no price data, dropped from simulation")
			continue
		}
		tickers = append(tickers, h.Ticker)
		weights = append(weights, h.Weight)
		totalWeight += h.Weight
	}

	if totalWeight == 0 {
		return nil, ErrEmptyResult
	}

	current := make([]float64, len(weights))
	target := make([]float64, len(weights))
	for i, w := range weights {
		current[i] = w / totalWeight
		target[i] = current[i]
	}

	assetReturns := make([][]float64, len(tickers))
	for i, t := range tickers {
		assetReturns[i] = rets.Column(t)
	}

	triggerMonths := policy.Frequency.Months(policy.AnchorMonth)

	// Day-by-day simulation: rebalance on month transitions, then
	// compound and drift.
	n := rets.Len()
	portReturns := make([]float64, n)
	prevMonth := rets.Date(0).Month()

	for i := 0; i < n; i++ {
		month := rets.Date(i).Month()
		if month != prevMonth {
			if policy.Frequency != FreqNone && triggerMonths[month] {
				copy(current, target)
			}
			prevMonth = month
		}

		dayReturn := 0.0
		for j := range current {
			dayReturn += current[j] * assetReturns[j][i]
		}
		portReturns[i] = dayReturn

		// Buy-and-hold drift until the next rebalance:
		// w_i <- w_i * (1+r_i) / (1+r_p)
		for j := range current {
			current[j] = current[j] * (1 + assetReturns[j][i]) / (1 + dayReturn)
		}
	}

	bmReturns := rets.ColumnCopy(benchmarkTicker)

	result := &Result{
		Dates:            rets.Dates(),
		DailyReturns:     portReturns,
		Portfolio:        timeseries.CumulativeIndex(portReturns, 100),
		Benchmark:        timeseries.CumulativeIndex(bmReturns, 100),
		BenchmarkReturns: bmReturns,
		AssetOrder:       tickers,
		Assets:           make(map[string][]float64, len(tickers)),
	}
	for i, t := range tickers {
		result.Assets[t] = timeseries.CumulativeIndex(assetReturns[i], 100)
	}

	return result, nil
}

// applyFXConversion converts foreign-currency columns to the home
// currency on a copy of the price table. A missing conversion series
// skips that column rather than failing the run; the skip is logged so
// an unconverted column under an FX request stays visible.
func (s *Simulator) applyFXConversion(prices *timeseries.Table, holdings []Holding, benchmarkTicker string) *timeseries.Table {
	table := prices.Copy()
	converted := make(map[string]bool)

	for _, h := range holdings {
		if h.Currency == s.cfg.HomeCurrency || converted[h.Ticker] || !table.Has(h.Ticker) {
			continue
		}

		fxTicker, ok := s.cfg.FXTickers[h.Currency]
		if !ok || !table.Has(fxTicker) {
			s.logger.WithFields(map[string]interface{}{
				"ticker":   h.Ticker,
				"currency": h.Currency,
			}).Warn("FX series missing, column left unconverted")
			continue
		}

		_ = table.MulColumn(h.Ticker, table.Column(fxTicker))
		converted[h.Ticker] = true
	}

	// The benchmark converts the same way unless it is already
	// denominated in the home currency.
	if table.Has(benchmarkTicker) && !converted[benchmarkTicker] && !s.cfg.IsHomeAsset(benchmarkTicker) {
		currency := "USD"
		if strings.HasSuffix(benchmarkTicker, s.cfg.JPYSuffix) {
			currency = "JPY"
		}

		fxTicker, ok := s.cfg.FXTickers[currency]
		if ok && table.Has(fxTicker) {
			_ = table.MulColumn(benchmarkTicker, table.Column(fxTicker))
		} else {
			s.logger.WithFields(map[string]interface{}{
				"benchmark": benchmarkTicker,
				"currency":  currency,
			}).Warn("FX series missing, benchmark left unconverted")
		}
	}

	return table
}
