package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/minwoo-dev/folio/internal/backtest"
	"github.com/minwoo-dev/folio/internal/marketdata"
	"github.com/minwoo-dev/folio/internal/portfolio"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/database"
	"github.com/minwoo-dev/folio/pkg/httputil"
	"github.com/minwoo-dev/folio/pkg/logger"
	"github.com/minwoo-dev/folio/pkg/redis"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest from the command line",
	Long: `Run a portfolio backtest and print summary metrics.

Holdings are given inline as ticker:weight pairs, or loaded from a
saved portfolio by id.

Examples:
  go run ./cmd/folio backtest --holdings "AAPL:60,005930.KS:40" --benchmark ^GSPC
  go run ./cmd/folio backtest --portfolio 3 --freq Monthly --fx`,
	RunE: runBacktest,
}

var (
	btHoldings    string
	btPortfolioID int64
	btBenchmark   string
	btStart       string
	btEnd         string
	btFrequency   string
	btAnchorMonth int
	btConvertFX   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btHoldings, "holdings", "", "inline holdings as ticker:weight pairs")
	backtestCmd.Flags().Int64Var(&btPortfolioID, "portfolio", 0, "saved portfolio id")
	backtestCmd.Flags().StringVar(&btBenchmark, "benchmark", "", "benchmark ticker")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date (YYYY-MM-DD, default 3 years back)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date (YYYY-MM-DD, default today)")
	backtestCmd.Flags().StringVar(&btFrequency, "freq", "None",
		"rebalance frequency: None, Yearly, Semi-Annually, Quarterly, Monthly")
	backtestCmd.Flags().IntVar(&btAnchorMonth, "anchor", 0, "anchor month 1-12 (default start month)")
	backtestCmd.Flags().BoolVar(&btConvertFX, "fx", false, "convert foreign assets to the home currency")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	ctx := cmd.Context()

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	httpClient := httputil.New(log)
	providerClient := marketdata.NewClient(cfg.Provider, httpClient, log)
	barRepo := marketdata.NewRepository(db.Pool)
	cache := redis.NewCache(redisClient, "folio")
	marketService := marketdata.NewService(providerClient, barRepo, cache, cfg.Backtest, log)

	holdings, benchmark, err := resolveCLIHoldings(ctx, db, cfg)
	if err != nil {
		return err
	}

	frequency, err := backtest.ParseFrequency(btFrequency)
	if err != nil {
		return err
	}

	from, to, err := cliDateRange()
	if err != nil {
		return err
	}

	policy := backtest.RebalancePolicy{Frequency: frequency, AnchorMonth: from.Month()}
	if btAnchorMonth != 0 {
		if btAnchorMonth < 1 || btAnchorMonth > 12 {
			return fmt.Errorf("anchor month must be between 1 and 12")
		}
		policy.AnchorMonth = time.Month(btAnchorMonth)
	}

	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}

	prices, err := marketService.PriceTable(ctx, tickers, benchmark, from, to)
	if err != nil {
		return fmt.Errorf("load price data: %w", err)
	}

	simulator := backtest.NewSimulator(cfg.Backtest, log)
	result, err := simulator.Run(prices, holdings, benchmark, policy, btConvertFX)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	printResult(result, cfg.Backtest)
	return nil
}

// resolveCLIHoldings builds the holdings set from flags, loading the
// saved portfolio when one is referenced.
func resolveCLIHoldings(ctx context.Context, db *database.DB, cfg *config.Config) ([]backtest.Holding, string, error) {
	benchmark := btBenchmark

	var holdings []backtest.Holding
	switch {
	case btHoldings != "":
		parsed, err := parseHoldings(btHoldings)
		if err != nil {
			return nil, "", err
		}
		holdings = parsed
	case btPortfolioID > 0:
		saved, err := portfolio.NewRepository(db.Pool).Get(ctx, btPortfolioID)
		if err != nil {
			return nil, "", fmt.Errorf("load portfolio %d: %w", btPortfolioID, err)
		}
		holdings = saved.Holdings
		if benchmark == "" {
			benchmark = saved.Benchmark
		}
	default:
		return nil, "", fmt.Errorf("either --holdings or --portfolio is required")
	}

	if benchmark == "" {
		return nil, "", fmt.Errorf("--benchmark is required")
	}

	draft := portfolio.Portfolio{Name: "cli", Benchmark: benchmark, Holdings: holdings}
	if err := draft.Validate(cfg.Backtest.WeightTolerancePct); err != nil {
		return nil, "", err
	}

	return holdings, benchmark, nil
}

// parseHoldings parses "AAPL:60,005930.KS:40" into holdings with
// currencies inferred from each ticker's exchange suffix.
func parseHoldings(s string) ([]backtest.Holding, error) {
	parts := strings.Split(s, ",")
	holdings := make([]backtest.Holding, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("invalid holding %q, expected ticker:weight", part)
		}

		weight, err := strconv.ParseFloat(part[idx+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", part, err)
		}

		ticker := strings.ToUpper(part[:idx])
		holdings = append(holdings, backtest.Holding{
			Ticker:    ticker,
			Name:      ticker,
			Weight:    weight,
			AssetType: "stock",
			Currency:  marketdata.CurrencyFor(ticker),
		})
	}

	if len(holdings) == 0 {
		return nil, fmt.Errorf("no holdings given")
	}
	return holdings, nil
}

func cliDateRange() (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if btEnd != "" {
		parsed, err := time.Parse("2006-01-02", btEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end date %q", btEnd)
		}
		to = parsed
	}

	from := to.AddDate(-3, 0, 0)
	if btStart != "" {
		parsed, err := time.Parse("2006-01-02", btStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start date %q", btStart)
		}
		from = parsed
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--start must be before --end")
	}
	return from, to, nil
}

func printResult(result *backtest.Result, cfg config.BacktestConfig) {
	pm := backtest.ComputeMetrics(result.DailyReturns, result.FinalPortfolioValue(),
		result.StartDate(), result.EndDate(), cfg.RiskFreeRatePct, cfg.TradingDaysPerYear)
	bm := backtest.ComputeMetrics(result.BenchmarkReturns, result.FinalBenchmarkValue(),
		result.StartDate(), result.EndDate(), cfg.RiskFreeRatePct, cfg.TradingDaysPerYear)

	fmt.Printf("Period: %s .. %s (%d trading days)\n",
		result.StartDate().Format("2006-01-02"), result.EndDate().Format("2006-01-02"), result.Len())
	fmt.Println()

	// Last few rows of the indexed series.
	tail := result.Len() - 5
	if tail < 0 {
		tail = 0
	}
	fmt.Printf("%-12s %12s %12s\n", "Date", "Portfolio", "Benchmark")
	for i := tail; i < result.Len(); i++ {
		fmt.Printf("%-12s %12.2f %12.2f\n",
			result.Dates[i].Format("2006-01-02"), result.Portfolio[i], result.Benchmark[i])
	}
	fmt.Println()
	fmt.Printf("%-16s %12s %12s\n", "", "Portfolio", "Benchmark")
	fmt.Printf("%-16s %11.2f%% %11.2f%%\n", "Total Return", pm.TotalReturn, bm.TotalReturn)
	fmt.Printf("%-16s %11.2f%% %11.2f%%\n", "CAGR", pm.CAGR, bm.CAGR)
	fmt.Printf("%-16s %11.2f%% %11.2f%%\n", "Max Drawdown", pm.MaxDrawdown, bm.MaxDrawdown)
	fmt.Printf("%-16s %11.2f%% %11.2f%%\n", "Volatility", pm.Volatility, bm.Volatility)
	fmt.Printf("%-16s %12.2f %12.2f\n", "Sharpe", pm.Sharpe, bm.Sharpe)
}
