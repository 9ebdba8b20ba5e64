package portfolio

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/minwoo-dev/folio/internal/backtest"
)

// ErrNotFound is returned when no portfolio exists for the requested id.
var ErrNotFound = errors.New("portfolio not found")

// Portfolio is a named set of weighted holdings plus the benchmark it
// is measured against.
type Portfolio struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Benchmark string             `json:"benchmark"`
	Holdings  []backtest.Holding `json:"holdings"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Tickers returns the holding tickers in declaration order.
func (p *Portfolio) Tickers() []string {
	tickers := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		tickers = append(tickers, h.Ticker)
	}
	return tickers
}

// TotalWeight returns the sum of all holding weights in percent.
func (p *Portfolio) TotalWeight() float64 {
	total := 0.0
	for _, h := range p.Holdings {
		total += h.Weight
	}
	return total
}

// Validate checks a portfolio before it is saved or simulated. Weights
// must sum to 100 within tolerancePct to absorb rounding from the
// client.
func (p *Portfolio) Validate(tolerancePct float64) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("portfolio name is required")
	}
	if strings.TrimSpace(p.Benchmark) == "" {
		return fmt.Errorf("benchmark ticker is required")
	}
	if len(p.Holdings) == 0 {
		return fmt.Errorf("portfolio needs at least one holding")
	}

	seen := make(map[string]bool, len(p.Holdings))
	for i, h := range p.Holdings {
		if strings.TrimSpace(h.Ticker) == "" {
			return fmt.Errorf("holding %d: ticker is required", i)
		}
		if seen[h.Ticker] {
			return fmt.Errorf("holding %d: duplicate ticker %s", i, h.Ticker)
		}
		seen[h.Ticker] = true

		if h.Weight <= 0 {
			return fmt.Errorf("holding %s: weight must be positive, got %.2f", h.Ticker, h.Weight)
		}
	}

	if total := p.TotalWeight(); math.Abs(total-100) > tolerancePct {
		return fmt.Errorf("holding weights must sum to 100%%, got %.2f%%", total)
	}

	return nil
}
