package marketdata

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists daily bars in PostgreSQL. It acts as the durable
// price cache behind the provider: the scheduler refreshes it daily
// and reads fall back to it when the provider is unreachable.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new price repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBars retrieves bars for a symbol within [from, to], oldest first.
func (r *Repository) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	query := `
		SELECT trade_date, open, high, low, close, adj_close, volume
		FROM daily_bars
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LatestDate returns the most recent stored trade date for a symbol.
// Returns the zero time when no bars are stored.
func (r *Repository) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	query := `
		SELECT trade_date
		FROM daily_bars
		WHERE symbol = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var latest time.Time
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&latest)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest, nil
}

// SaveBars upserts a batch of bars for a symbol. Re-fetched rows
// overwrite stored ones so adjusted closes pick up later corporate
// actions.
func (r *Repository) SaveBars(ctx context.Context, symbol string, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_bars (symbol, trade_date, open, high, low, close, adj_close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adj_close = EXCLUDED.adj_close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
