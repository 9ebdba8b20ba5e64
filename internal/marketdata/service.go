package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/minwoo-dev/folio/internal/timeseries"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/logger"
	"github.com/minwoo-dev/folio/pkg/redis"
)

// refreshLookback bounds the initial backfill when a symbol has no
// stored history yet.
const refreshLookback = 5 * 365 * 24 * time.Hour

// BarSource supplies daily bars for a symbol. Satisfied by Service;
// table building depends on this instead of the concrete stack.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// Service is the read path for market data: Redis in front, the
// provider behind it, PostgreSQL as the durable fallback when the
// provider is unreachable.
type Service struct {
	client *Client
	repo   *Repository
	cache  *redis.Cache
	cfg    config.BacktestConfig
	logger *logger.Logger
}

// NewService creates a new market data service
func NewService(client *Client, repo *Repository, cache *redis.Cache, cfg config.BacktestConfig, log *logger.Logger) *Service {
	return &Service{
		client: client,
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		logger: log,
	}
}

// DailyBars returns daily bars for a symbol within [from, to].
func (s *Service) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	key := redis.BarsKey(symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var cached []Bar
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	bars, err := s.client.FetchDailyBars(ctx, symbol, from, to)
	if err != nil {
		stored, repoErr := s.repo.GetBars(ctx, symbol, from, to)
		if repoErr == nil && len(stored) > 0 {
			s.logger.WithError(err).WithField("symbol", symbol).
				Warn("Provider fetch failed, serving stored bars")
			return stored, nil
		}
		return nil, err
	}

	if err := s.repo.SaveBars(ctx, symbol, bars); err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to persist bars")
	}
	if err := s.cache.Set(ctx, key, bars, redis.TTLDaily); err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to cache bars")
	}

	return bars, nil
}

// Search resolves a keyword to tradable symbols, cached briefly since
// lookup results change rarely.
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]Quote, error) {
	key := redis.SearchKey(keyword)

	var cached []Quote
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	quotes, err := s.client.Search(ctx, keyword, limit)
	if err != nil {
		return nil, err
	}

	if len(quotes) > 0 {
		if err := s.cache.Set(ctx, key, quotes, redis.TTLMedium); err != nil {
			s.logger.WithError(err).WithField("keyword", keyword).Warn("Failed to cache search results")
		}
	}

	return quotes, nil
}

// RefreshSymbol pulls the provider forward from the last stored trade
// date and persists whatever is new. Used by the scheduled refresh job.
func (s *Service) RefreshSymbol(ctx context.Context, symbol string) (int, error) {
	to := time.Now().UTC()

	from := to.Add(-refreshLookback)
	latest, err := s.repo.LatestDate(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("latest date lookup for %s failed: %w", symbol, err)
	}
	if !latest.IsZero() {
		from = latest.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return 0, nil
	}

	bars, err := s.client.FetchDailyBars(ctx, symbol, from, to)
	if err != nil {
		return 0, err
	}

	if err := s.repo.SaveBars(ctx, symbol, bars); err != nil {
		return 0, fmt.Errorf("persist bars for %s failed: %w", symbol, err)
	}
	return len(bars), nil
}

// PriceTable assembles the dense close-price table a backtest runs on:
// every portfolio ticker, the benchmark, and the configured FX
// conversion series. Symbols the provider cannot serve are skipped
// with a warning; the simulation decides whether what remains is
// usable.
func (s *Service) PriceTable(ctx context.Context, tickers []string, benchmark string, from, to time.Time) (*timeseries.Table, error) {
	symbols := make([]string, 0, len(tickers)+3)
	seen := make(map[string]bool)

	add := func(symbol string) {
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}

	for _, t := range tickers {
		add(t)
	}
	add(benchmark)
	for _, fx := range s.cfg.FXTickers {
		add(fx)
	}

	return BuildTable(ctx, s, symbols, from, to, s.logger)
}

// BuildTable fetches adjusted close series for each symbol from a
// BarSource and joins them into one dense table. Symbols that fail or
// come back empty are dropped, not fatal.
func BuildTable(ctx context.Context, source BarSource, symbols []string, from, to time.Time, log *logger.Logger) (*timeseries.Table, error) {
	builder := timeseries.NewBuilder()

	for _, symbol := range symbols {
		bars, err := source.DailyBars(ctx, symbol, from, to)
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Warn("Skipping symbol in price table")
			continue
		}

		points := make([]timeseries.Point, 0, len(bars))
		for _, b := range bars {
			points = append(points, timeseries.Point{Date: b.Date, Value: b.AdjClose})
		}
		builder.Add(symbol, points)
	}

	table, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("price table build failed: %w", err)
	}
	return table, nil
}
