package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/httputil"
	"github.com/minwoo-dev/folio/pkg/logger"
)

// Client fetches quotes from the Yahoo Finance chart API.
// All provider HTTP calls go through this client and its rate limiter.
type Client struct {
	httpClient    *httputil.Client
	logger        *logger.Logger
	limiter       *rate.Limiter
	chartBaseURL  string
	searchBaseURL string
}

// NewClient creates a new provider client
func NewClient(cfg config.ProviderConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient:    httpClient,
		logger:        log,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		chartBaseURL:  cfg.ChartBaseURL,
		searchBaseURL: cfg.SearchBaseURL,
	}
}

// FetchDailyBars fetches daily bars for a symbol within [from, to].
// Rows the provider reports with a null close (holidays, halts) are
// dropped. Returns ErrNoData when the provider has nothing usable.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	fullURL := fmt.Sprintf("%s/%s?%s", c.chartBaseURL, url.PathEscape(symbol), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	bars, err := parseChartResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse chart response for %s failed: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched daily bars")
	return bars, nil
}

// chartResponse mirrors the chart API envelope. Price arrays use
// pointers because the provider emits null for non-trading rows.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// parseChartResponse decodes a chart API body into daily bars.
// Timestamps are exchange-local session opens; they are normalized to
// UTC midnight so every source aligns on calendar days.
func parseChartResponse(body []byte) ([]Bar, error) {
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if cr.Chart.Error != nil {
		return nil, fmt.Errorf("provider error %s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	result := cr.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	quote := result.Indicators.Quote[0]
	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil {
			continue
		}

		bar := Bar{
			Date:     dayStart(time.Unix(ts, 0).UTC()),
			Close:    *closePrice,
			AdjClose: *closePrice,
		}
		if v := at(quote.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = *v
		}
		if v := at(adjClose, i); v != nil {
			bar.AdjClose = *v
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
