package marketdata

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minwoo-dev/folio/pkg/logger"
)

func TestCandidateSymbols(t *testing.T) {
	tests := []struct {
		keyword string
		want    []string
	}{
		{"AAPL", []string{"AAPL"}},
		{"aapl ", []string{"AAPL"}},
		{"005930", []string{"005930.KS", "005930.KQ"}},
		{"7203", []string{"7203.T"}},
		{"12345", []string{"12345"}}, // unrecognized digit length, tried verbatim
		{"", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CandidateSymbols(tt.keyword), "keyword %q", tt.keyword)
	}
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "KRW", CurrencyFor("005930.KS"))
	assert.Equal(t, "KRW", CurrencyFor("035720.KQ"))
	assert.Equal(t, "JPY", CurrencyFor("7203.T"))
	assert.Equal(t, "USD", CurrencyFor("AAPL"))
	assert.Equal(t, "USD", CurrencyFor("^GSPC"))
}

func TestParseChartResponse(t *testing.T) {
	// Three sessions, middle close null (holiday row), with adjclose.
	body := []byte(`{
		"chart": {
			"result": [{
				"meta": {"symbol": "AAPL", "currency": "USD"},
				"timestamp": [1704153600, 1704240000, 1704326400],
				"indicators": {
					"quote": [{
						"open":   [184.2, null, 183.9],
						"high":   [186.0, null, 185.5],
						"low":    [183.0, null, 182.7],
						"close":  [185.6, null, 184.2],
						"volume": [81964900, null, 58414500]
					}],
					"adjclose": [{"adjclose": [185.1, null, 183.7]}]
				}
			}],
			"error": null
		}
	}`)

	bars, err := parseChartResponse(body)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.InDelta(t, 185.6, bars[0].Close, 1e-9)
	assert.InDelta(t, 185.1, bars[0].AdjClose, 1e-9)
	assert.InDelta(t, 81964900, bars[0].Volume, 1e-9)

	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bars[1].Date)
	assert.InDelta(t, 184.2, bars[1].Close, 1e-9)
	assert.InDelta(t, 183.7, bars[1].AdjClose, 1e-9)
}

func TestParseChartResponseNoAdjClose(t *testing.T) {
	body := []byte(`{
		"chart": {
			"result": [{
				"meta": {"symbol": "KRW=X", "currency": "KRW"},
				"timestamp": [1704153600],
				"indicators": {
					"quote": [{
						"open": [1300.0], "high": [1310.0], "low": [1295.0],
						"close": [1305.0], "volume": [0]
					}]
				}
			}],
			"error": null
		}
	}`)

	bars, err := parseChartResponse(body)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	// Adjusted close falls back to the raw close.
	assert.InDelta(t, 1305.0, bars[0].AdjClose, 1e-9)
}

func TestParseChartResponseProviderError(t *testing.T) {
	body := []byte(`{
		"chart": {
			"result": null,
			"error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
		}
	}`)

	_, err := parseChartResponse(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestParseChartResponseEmpty(t *testing.T) {
	body := []byte(`{"chart": {"result": [], "error": null}}`)

	_, err := parseChartResponse(body)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = parseChartResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseLookupHTML(t *testing.T) {
	html := `
		<html><body>
		<table>
			<thead><tr><th>Symbol</th><th>Name</th></tr></thead>
			<tbody>
				<tr><td><a href="/quote/AAPL">AAPL</a></td><td>Apple Inc.</td><td>185.6</td></tr>
				<tr><td>005930.KS</td><td>Samsung Electronics</td><td>71000</td></tr>
				<tr><td>7203.T</td><td></td><td>2500</td></tr>
			</tbody>
		</table>
		</body></html>`

	quotes, err := parseLookupHTML(strings.NewReader(html), 5)
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	assert.Equal(t, Quote{Ticker: "AAPL", Name: "Apple Inc.", Currency: "USD"}, quotes[0])
	assert.Equal(t, Quote{Ticker: "005930.KS", Name: "Samsung Electronics", Currency: "KRW"}, quotes[1])
	// Missing name falls back to the symbol.
	assert.Equal(t, Quote{Ticker: "7203.T", Name: "7203.T", Currency: "JPY"}, quotes[2])
}

func TestParseLookupHTMLLimit(t *testing.T) {
	html := `
		<table><tbody>
			<tr><td>A</td><td>Alpha</td></tr>
			<tr><td>B</td><td>Beta</td></tr>
			<tr><td>C</td><td>Gamma</td></tr>
		</tbody></table>`

	quotes, err := parseLookupHTML(strings.NewReader(html), 2)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "A", quotes[0].Ticker)
	assert.Equal(t, "B", quotes[1].Ticker)
}

// fakeSource serves canned bars per symbol and fails on demand.
type fakeSource struct {
	bars map[string][]Bar
	fail map[string]bool
}

func (f *fakeSource) DailyBars(_ context.Context, symbol string, _, _ time.Time) ([]Bar, error) {
	if f.fail[symbol] {
		return nil, fmt.Errorf("fetch %s: boom", symbol)
	}
	return f.bars[symbol], nil
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildTable(t *testing.T) {
	source := &fakeSource{
		bars: map[string][]Bar{
			"AAPL": {
				{Date: day(1), Close: 100, AdjClose: 99},
				{Date: day(2), Close: 101, AdjClose: 100},
			},
			"MSFT": {
				{Date: day(1), Close: 200, AdjClose: 200},
				{Date: day(2), Close: 202, AdjClose: 202},
			},
		},
	}

	table, err := BuildTable(context.Background(), source, []string{"AAPL", "MSFT"}, day(1), day(2), logger.NewNop())
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, table.Columns())

	// The table holds adjusted closes, not raw closes.
	require.True(t, table.Has("AAPL"))
	aapl := table.Column("AAPL")
	assert.InDelta(t, 99.0, aapl[0], 1e-9)
	assert.InDelta(t, 100.0, aapl[1], 1e-9)
}

func TestBuildTableSkipsFailingSymbols(t *testing.T) {
	source := &fakeSource{
		bars: map[string][]Bar{
			"AAPL": {{Date: day(1), AdjClose: 99}},
		},
		fail: map[string]bool{"BROKEN": true},
	}

	table, err := BuildTable(context.Background(), source,
		[]string{"AAPL", "BROKEN", "EMPTY"}, day(1), day(1), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, table.Columns())
	assert.Equal(t, 1, table.Len())
}

func TestBuildTableAllSymbolsFail(t *testing.T) {
	source := &fakeSource{fail: map[string]bool{"X": true}}

	table, err := BuildTable(context.Background(), source, []string{"X"}, day(1), day(2), logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}
