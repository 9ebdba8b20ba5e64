package marketdata

import (
	"errors"
	"strings"
	"time"
)

// ErrNoData is returned when the provider has no bars for a symbol in
// the requested range.
var ErrNoData = errors.New("no market data for symbol")

// Bar is one daily OHLCV observation. AdjClose is the split- and
// dividend-adjusted close; backtests and indicator inputs use it so
// corporate actions do not show up as phantom returns.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   float64   `json:"volume"`
}

// Quote is one ticker search result.
type Quote struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// currencyBySuffix maps exchange suffixes to trading currencies.
// Symbols without a known suffix default to USD.
var currencyBySuffix = map[string]string{
	".KS": "KRW",
	".KQ": "KRW",
	".T":  "JPY",
}

// CurrencyFor returns the trading currency implied by a symbol's
// exchange suffix.
func CurrencyFor(symbol string) string {
	for suffix, currency := range currencyBySuffix {
		if strings.HasSuffix(symbol, suffix) {
			return currency
		}
	}
	return "USD"
}

// CandidateSymbols expands a raw search keyword into provider symbols.
// Purely numeric keywords are exchange codes: 6 digits map to the
// Korean markets (KOSPI then KOSDAQ), 4 digits to Tokyo. Anything else
// is tried verbatim, uppercased.
func CandidateSymbols(keyword string) []string {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil
	}

	if isDigits(keyword) {
		switch len(keyword) {
		case 6:
			return []string{keyword + ".KS", keyword + ".KQ"}
		case 4:
			return []string{keyword + ".T"}
		}
	}

	return []string{keyword}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
