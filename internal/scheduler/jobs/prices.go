// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"

	"github.com/minwoo-dev/folio/pkg/logger"
)

// TickerSource lists the symbols whose prices must stay fresh.
// Satisfied by portfolio.Repository.
type TickerSource interface {
	ReferencedTickers(ctx context.Context) ([]string, error)
}

// Refresher pulls a symbol's bars forward and persists them.
// Satisfied by marketdata.Service.
type Refresher interface {
	RefreshSymbol(ctx context.Context, symbol string) (int, error)
}

// PriceRefreshJob refreshes stored daily bars for every symbol any
// saved portfolio references. One failing symbol does not stop the
// rest; the job reports failure only when nothing could be refreshed.
type PriceRefreshJob struct {
	source    TickerSource
	refresher Refresher
	schedule  string
	logger    *logger.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(source TickerSource, refresher Refresher, schedule string, log *logger.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		source:    source,
		refresher: refresher,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Schedule returns the cron schedule expression
func (j *PriceRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes all referenced symbols.
func (j *PriceRefreshJob) Run(ctx context.Context) error {
	tickers, err := j.source.ReferencedTickers(ctx)
	if err != nil {
		return fmt.Errorf("list referenced tickers failed: %w", err)
	}
	if len(tickers) == 0 {
		j.logger.Info("No portfolio tickers to refresh")
		return nil
	}

	refreshed := 0
	failed := 0
	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		count, err := j.refresher.RefreshSymbol(ctx, ticker)
		if err != nil {
			failed++
			j.logger.WithError(err).WithField("symbol", ticker).Warn("Price refresh failed for symbol")
			continue
		}
		refreshed++

		if count > 0 {
			j.logger.WithFields(map[string]interface{}{
				"symbol": ticker,
				"bars":   count,
			}).Debug("Refreshed symbol")
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"refreshed": refreshed,
		"failed":    failed,
	}).Info("Price refresh completed")

	if refreshed == 0 && failed > 0 {
		return fmt.Errorf("price refresh failed for all %d symbols", failed)
	}
	return nil
}
