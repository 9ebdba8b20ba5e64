package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/minwoo-dev/folio/internal/backtest"
	"github.com/minwoo-dev/folio/internal/portfolio"
	"github.com/minwoo-dev/folio/internal/timeseries"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/logger"
)

// defaultLookbackYears is the simulated span when the request omits
// dates.
const defaultLookbackYears = 3

// PriceTableProvider assembles the dense close-price table a
// simulation runs on. Satisfied by marketdata.Service.
type PriceTableProvider interface {
	PriceTable(ctx context.Context, tickers []string, benchmark string, from, to time.Time) (*timeseries.Table, error)
}

// PortfolioLoader loads saved portfolios for backtests referencing one
// by id.
type PortfolioLoader interface {
	Get(ctx context.Context, id int64) (*portfolio.Portfolio, error)
}

// BacktestHandler handles backtest API endpoints.
type BacktestHandler struct {
	prices    PriceTableProvider
	loader    PortfolioLoader
	simulator *backtest.Simulator
	cfg       config.BacktestConfig
	logger    *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(prices PriceTableProvider, loader PortfolioLoader, sim *backtest.Simulator, cfg config.BacktestConfig, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		prices:    prices,
		loader:    loader,
		simulator: sim,
		cfg:       cfg,
		logger:    log,
	}
}

// BacktestRequest is the POST /api/backtest payload. Holdings are
// given inline or by referencing a saved portfolio; inline values win
// when both are present.
type BacktestRequest struct {
	PortfolioID int64              `json:"portfolio_id,omitempty"`
	Holdings    []backtest.Holding `json:"holdings,omitempty"`
	Benchmark   string             `json:"benchmark,omitempty"`
	StartDate   string             `json:"start_date,omitempty"`
	EndDate     string             `json:"end_date,omitempty"`
	Rebalance   RebalanceRequest   `json:"rebalance"`
	ConvertFX   bool               `json:"convert_fx"`
}

// RebalanceRequest selects the rebalancing policy.
type RebalanceRequest struct {
	Frequency   backtest.Frequency `json:"frequency"`
	AnchorMonth int                `json:"anchor_month,omitempty"` // 1-12, defaults to the start month
}

// BacktestResponse is the simulation result plus summary metrics for
// both legs.
type BacktestResponse struct {
	StartDate string               `json:"start_date"`
	EndDate   string               `json:"end_date"`
	Dates     []string             `json:"dates"`
	Portfolio []float64            `json:"portfolio"`
	Benchmark []float64            `json:"benchmark"`
	Assets    map[string][]float64 `json:"assets"`
	Metrics   struct {
		Portfolio backtest.Metrics `json:"portfolio"`
		Benchmark backtest.Metrics `json:"benchmark"`
	} `json:"metrics"`
}

// Run executes a backtest.
// POST /api/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	holdings, benchmark, err := h.resolveHoldings(ctx, &req)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			respondError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	from, to, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy := backtest.RebalancePolicy{
		Frequency:   req.Rebalance.Frequency,
		AnchorMonth: from.Month(),
	}
	if req.Rebalance.AnchorMonth != 0 {
		if req.Rebalance.AnchorMonth < 1 || req.Rebalance.AnchorMonth > 12 {
			respondError(w, http.StatusBadRequest, "anchor_month must be between 1 and 12")
			return
		}
		policy.AnchorMonth = time.Month(req.Rebalance.AnchorMonth)
	}

	tickers := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		tickers = append(tickers, holding.Ticker)
	}

	prices, err := h.prices.PriceTable(ctx, tickers, benchmark, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build price table")
		respondError(w, http.StatusBadGateway, "failed to load price data")
		return
	}

	result, err := h.simulator.Run(prices, holdings, benchmark, policy, req.ConvertFX)
	if err != nil {
		if errors.Is(err, backtest.ErrEmptyResult) {
			respondError(w, http.StatusUnprocessableEntity, "no overlapping price data for the requested assets and range")
			return
		}
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "backtest failed")
		return
	}

	respondJSON(w, http.StatusOK, h.buildResponse(result))
}

// resolveHoldings decides the holdings and benchmark for a request,
// loading the saved portfolio when one is referenced.
func (h *BacktestHandler) resolveHoldings(ctx context.Context, req *BacktestRequest) ([]backtest.Holding, string, error) {
	holdings := req.Holdings
	benchmark := req.Benchmark

	if len(holdings) == 0 && req.PortfolioID > 0 {
		saved, err := h.loader.Get(ctx, req.PortfolioID)
		if err != nil {
			return nil, "", err
		}
		holdings = saved.Holdings
		if benchmark == "" {
			benchmark = saved.Benchmark
		}
	}

	if len(holdings) == 0 {
		return nil, "", fmt.Errorf("holdings or portfolio_id is required")
	}
	if benchmark == "" {
		return nil, "", fmt.Errorf("benchmark is required")
	}

	draft := portfolio.Portfolio{Name: "request", Benchmark: benchmark, Holdings: holdings}
	if err := draft.Validate(h.cfg.WeightTolerancePct); err != nil {
		return nil, "", err
	}

	return holdings, benchmark, nil
}

func (h *BacktestHandler) buildResponse(result *backtest.Result) *BacktestResponse {
	resp := &BacktestResponse{
		StartDate: result.StartDate().Format("2006-01-02"),
		EndDate:   result.EndDate().Format("2006-01-02"),
		Dates:     make([]string, result.Len()),
		Portfolio: result.Portfolio,
		Benchmark: result.Benchmark,
		Assets:    result.Assets,
	}
	for i, d := range result.Dates {
		resp.Dates[i] = d.Format("2006-01-02")
	}

	resp.Metrics.Portfolio = backtest.ComputeMetrics(
		result.DailyReturns, result.FinalPortfolioValue(),
		result.StartDate(), result.EndDate(),
		h.cfg.RiskFreeRatePct, h.cfg.TradingDaysPerYear,
	)
	resp.Metrics.Benchmark = backtest.ComputeMetrics(
		result.BenchmarkReturns, result.FinalBenchmarkValue(),
		result.StartDate(), result.EndDate(),
		h.cfg.RiskFreeRatePct, h.cfg.TradingDaysPerYear,
	)

	return resp
}

// parseDateRange parses optional ISO dates, defaulting to the last few
// years ending today.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q", endStr)
		}
		to = parsed
	}

	from := to.AddDate(-defaultLookbackYears, 0, 0)
	if startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q", startStr)
		}
		from = parsed
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return from, to, nil
}
