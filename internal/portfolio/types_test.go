package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minwoo-dev/folio/internal/backtest"
)

func validPortfolio() *Portfolio {
	return &Portfolio{
		Name:      "Core",
		Benchmark: "^GSPC",
		Holdings: []backtest.Holding{
			{Ticker: "AAPL", Name: "Apple", Weight: 60, AssetType: "stock", Currency: "USD"},
			{Ticker: "005930.KS", Name: "Samsung Electronics", Weight: 40, AssetType: "stock", Currency: "KRW"},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validPortfolio().Validate(0.1))
}

func TestValidateWeightTolerance(t *testing.T) {
	p := validPortfolio()

	// Rounding drift inside the tolerance passes.
	p.Holdings[0].Weight = 60.05
	assert.NoError(t, p.Validate(0.1))

	// Outside it fails.
	p.Holdings[0].Weight = 61
	assert.Error(t, p.Validate(0.1))
}

func TestValidateRejectsBadPortfolios(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Portfolio)
	}{
		{"empty name", func(p *Portfolio) { p.Name = "  " }},
		{"empty benchmark", func(p *Portfolio) { p.Benchmark = "" }},
		{"no holdings", func(p *Portfolio) { p.Holdings = nil }},
		{"empty ticker", func(p *Portfolio) { p.Holdings[0].Ticker = "" }},
		{"zero weight", func(p *Portfolio) { p.Holdings[0].Weight = 0; p.Holdings[1].Weight = 100 }},
		{"negative weight", func(p *Portfolio) { p.Holdings[0].Weight = -60 }},
		{"duplicate ticker", func(p *Portfolio) { p.Holdings[1].Ticker = "AAPL" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPortfolio()
			tt.mutate(p)
			assert.Error(t, p.Validate(0.1))
		})
	}
}

func TestTickersAndTotalWeight(t *testing.T) {
	p := validPortfolio()

	assert.Equal(t, []string{"AAPL", "005930.KS"}, p.Tickers())
	assert.InDelta(t, 100.0, p.TotalWeight(), 1e-12)
}
