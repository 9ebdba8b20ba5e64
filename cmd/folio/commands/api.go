package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minwoo-dev/folio/internal/api"
	"github.com/minwoo-dev/folio/internal/api/handlers"
	"github.com/minwoo-dev/folio/internal/backtest"
	"github.com/minwoo-dev/folio/internal/marketdata"
	"github.com/minwoo-dev/folio/internal/portfolio"
	"github.com/minwoo-dev/folio/internal/scheduler"
	"github.com/minwoo-dev/folio/internal/scheduler/jobs"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/database"
	"github.com/minwoo-dev/folio/pkg/httputil"
	"github.com/minwoo-dev/folio/pkg/logger"
	"github.com/minwoo-dev/folio/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Start the REST API server.

Endpoints:
  GET    /health                  - Health check
  POST   /api/backtest            - Run a backtest
  GET    /api/portfolios          - List saved portfolios
  POST   /api/portfolios          - Save a portfolio
  GET    /api/portfolios/{id}     - Get a portfolio
  PUT    /api/portfolios/{id}     - Update a portfolio
  DELETE /api/portfolios/{id}     - Delete a portfolio
  GET    /api/search              - Search tradable symbols
  GET    /api/indicators/{ticker} - Technical indicators for a symbol

Example:
  go run ./cmd/folio api
  go run ./cmd/folio api --port 8089`,
	RunE: runAPIServer,
}

var (
	apiPort         string
	refreshSchedule string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().StringVar(&refreshSchedule, "refresh-schedule", "0 30 18 * * 1-5",
		"cron schedule for the daily price refresh")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Connected to database")

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "folio")
	rateLimiter := redis.NewRateLimiter(redisClient, "folio")

	httpClient := httputil.New(log).
		WithTimeout(30 * time.Second).
		WithRateLimiter(rateLimiter, redis.ProviderRateLimit)

	providerClient := marketdata.NewClient(cfg.Provider, httpClient, log)
	barRepo := marketdata.NewRepository(db.Pool)
	marketService := marketdata.NewService(providerClient, barRepo, cache, cfg.Backtest, log)

	portfolioRepo := portfolio.NewRepository(db.Pool)
	simulator := backtest.NewSimulator(cfg.Backtest, log)

	backtestHandler := handlers.NewBacktestHandler(marketService, portfolioRepo, simulator, cfg.Backtest, log)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioRepo, cfg.Backtest, log)
	marketHandler := handlers.NewMarketHandler(marketService, cfg.TA, log)

	router := api.NewRouter(backtestHandler, portfolioHandler, marketHandler, log)
	server := api.New(cfg, log, router)

	sched := scheduler.New(log)
	refreshJob := jobs.NewPriceRefreshJob(portfolioRepo, marketService, refreshSchedule, log)
	if err := sched.AddJob(refreshJob); err != nil {
		return fmt.Errorf("schedule price refresh: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
