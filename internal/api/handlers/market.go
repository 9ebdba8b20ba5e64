package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/minwoo-dev/folio/internal/indicators"
	"github.com/minwoo-dev/folio/internal/marketdata"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/logger"
)

// MarketDataProvider is the market data surface the handler needs.
// Satisfied by marketdata.Service.
type MarketDataProvider interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.Bar, error)
	Search(ctx context.Context, keyword string, limit int) ([]marketdata.Quote, error)
}

// MarketHandler handles symbol search and technical indicator
// endpoints.
type MarketHandler struct {
	data   MarketDataProvider
	ta     config.TAConfig
	logger *logger.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(data MarketDataProvider, ta config.TAConfig, log *logger.Logger) *MarketHandler {
	return &MarketHandler{
		data:   data,
		ta:     ta,
		logger: log,
	}
}

// Search resolves a keyword to tradable symbols.
// GET /api/search?q=keyword&limit=5
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := 5
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	quotes, err := h.data.Search(r.Context(), keyword, limit)
	if err != nil {
		h.logger.WithError(err).WithField("keyword", keyword).Error("Symbol search failed")
		respondError(w, http.StatusBadGateway, "symbol search failed")
		return
	}

	if quotes == nil {
		quotes = []marketdata.Quote{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": quotes,
	})
}

// IndicatorsResponse carries a symbol's bars plus the derived
// indicator series. Undefined leading values are null.
type IndicatorsResponse struct {
	Ticker    string                `json:"ticker"`
	Dates     []string              `json:"dates"`
	Close     []float64             `json:"close"`
	Volume    []float64             `json:"volume"`
	EMA       map[string][]*float64 `json:"ema"`
	Bollinger struct {
		Upper  []*float64 `json:"upper"`
		Middle []*float64 `json:"middle"`
		Lower  []*float64 `json:"lower"`
	} `json:"bollinger"`
	RSI  []*float64 `json:"rsi"`
	MACD struct {
		Line      []*float64 `json:"line"`
		Signal    []*float64 `json:"signal"`
		Histogram []*float64 `json:"histogram"`
	} `json:"macd"`
	VWAP []*float64 `json:"vwap"`
}

// Indicators computes the technical indicator set for one symbol.
// GET /api/indicators/{ticker}?days=365
func (h *MarketHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	days := 365
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	bars, err := h.data.DailyBars(r.Context(), ticker, from, to)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("no data for %s", ticker))
			return
		}
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to fetch bars")
		respondError(w, http.StatusBadGateway, "failed to fetch price data")
		return
	}
	if len(bars) == 0 {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no data for %s", ticker))
		return
	}

	respondJSON(w, http.StatusOK, h.buildIndicators(ticker, bars))
}

func (h *MarketHandler) buildIndicators(ticker string, bars []marketdata.Bar) *IndicatorsResponse {
	n := len(bars)
	resp := &IndicatorsResponse{
		Ticker: ticker,
		Dates:  make([]string, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
		EMA:    make(map[string][]*float64, len(h.ta.EMAPeriods)),
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		resp.Dates[i] = b.Date.Format("2006-01-02")
		resp.Close[i] = b.AdjClose
		resp.Volume[i] = b.Volume
		highs[i] = b.High
		lows[i] = b.Low
	}

	for _, period := range h.ta.EMAPeriods {
		resp.EMA[strconv.Itoa(period)] = nullable(indicators.EMA(resp.Close, period))
	}

	upper, middle, lower := indicators.BollingerBands(resp.Close, h.ta.BBPeriod, h.ta.BBStdDev)
	resp.Bollinger.Upper = nullable(upper)
	resp.Bollinger.Middle = nullable(middle)
	resp.Bollinger.Lower = nullable(lower)

	resp.RSI = nullable(indicators.RSI(resp.Close, h.ta.RSIPeriod))

	line, signal, histogram := indicators.MACD(resp.Close, h.ta.MACDFast, h.ta.MACDSlow, h.ta.MACDSignal)
	resp.MACD.Line = nullable(line)
	resp.MACD.Signal = nullable(signal)
	resp.MACD.Histogram = nullable(histogram)

	resp.VWAP = nullable(indicators.VWAP(highs, lows, resp.Close, resp.Volume))

	return resp
}
