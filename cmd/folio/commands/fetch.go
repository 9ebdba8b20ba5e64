package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/minwoo-dev/folio/internal/marketdata"
	"github.com/minwoo-dev/folio/internal/portfolio"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/database"
	"github.com/minwoo-dev/folio/pkg/httputil"
	"github.com/minwoo-dev/folio/pkg/logger"
	"github.com/minwoo-dev/folio/pkg/redis"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Fetch and store daily bars",
	Long: `Fetch daily bars from the provider and store them.

Without arguments, refreshes every symbol referenced by a saved
portfolio. With arguments, refreshes only the given symbols.

Examples:
  go run ./cmd/folio fetch
  go run ./cmd/folio fetch AAPL 005930.KS KRW=X`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
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

	httpClient := httputil.New(log).WithTimeout(30 * time.Second)
	providerClient := marketdata.NewClient(cfg.Provider, httpClient, log)
	barRepo := marketdata.NewRepository(db.Pool)
	cache := redis.NewCache(redisClient, "folio")
	marketService := marketdata.NewService(providerClient, barRepo, cache, cfg.Backtest, log)

	symbols := args
	if len(symbols) == 0 {
		symbols, err = portfolio.NewRepository(db.Pool).ReferencedTickers(ctx)
		if err != nil {
			return fmt.Errorf("list referenced tickers: %w", err)
		}
		if len(symbols) == 0 {
			fmt.Println("No saved portfolios; nothing to fetch.")
			return nil
		}
	}

	failed := 0
	for _, symbol := range symbols {
		count, err := marketService.RefreshSymbol(ctx, symbol)
		if err != nil {
			failed++
			log.WithError(err).WithField("symbol", symbol).Error("Fetch failed")
			continue
		}
		fmt.Printf("%-12s %d new bars\n", symbol, count)
	}

	if failed > 0 {
		return fmt.Errorf("fetch failed for %d of %d symbols", failed, len(symbols))
	}
	return nil
}
