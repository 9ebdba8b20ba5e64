package portfolio

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minwoo-dev/folio/internal/backtest"
)

// Repository handles portfolio persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a portfolio with its holdings and returns it with the
// assigned id and timestamps.
func (r *Repository) Create(ctx context.Context, p *Portfolio) (*Portfolio, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO portfolios (name, benchmark)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Benchmark).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert portfolio: %w", err)
	}

	if err := insertHoldings(ctx, tx, p.ID, p.Holdings); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// Update replaces a portfolio's attributes and holdings in one
// transaction.
func (r *Repository) Update(ctx context.Context, p *Portfolio) (*Portfolio, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE portfolios
		SET name = $1, benchmark = $2, updated_at = NOW()
		WHERE id = $3
	`, p.Name, p.Benchmark, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM portfolio_holdings WHERE portfolio_id = $1", p.ID); err != nil {
		return nil, fmt.Errorf("failed to delete old holdings: %w", err)
	}
	if err := insertHoldings(ctx, tx, p.ID, p.Holdings); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.Get(ctx, p.ID)
}

// Get retrieves one portfolio with its holdings.
func (r *Repository) Get(ctx context.Context, id int64) (*Portfolio, error) {
	p := &Portfolio{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, benchmark, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Benchmark, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}

	holdings, err := r.getHoldings(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Holdings = holdings

	return p, nil
}

// List retrieves all portfolios with their holdings, newest first.
func (r *Repository) List(ctx context.Context) ([]*Portfolio, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, benchmark, created_at, updated_at
		FROM portfolios
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]*Portfolio, 0)
	for rows.Next() {
		p := &Portfolio{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Benchmark, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for _, p := range portfolios {
		holdings, err := r.getHoldings(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Holdings = holdings
	}

	return portfolios, nil
}

// Delete removes a portfolio and its holdings.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM portfolios WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReferencedTickers returns every distinct symbol any saved portfolio
// depends on, holdings and benchmarks alike. The scheduled price
// refresh walks this set.
func (r *Repository) ReferencedTickers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ticker FROM portfolio_holdings
		UNION
		SELECT DISTINCT benchmark FROM portfolios
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func (r *Repository) getHoldings(ctx context.Context, portfolioID int64) ([]backtest.Holding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ticker, name, weight, asset_type, currency
		FROM portfolio_holdings
		WHERE portfolio_id = $1
		ORDER BY weight DESC, ticker ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]backtest.Holding, 0)
	for rows.Next() {
		var h backtest.Holding
		if err := rows.Scan(&h.Ticker, &h.Name, &h.Weight, &h.AssetType, &h.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func insertHoldings(ctx context.Context, tx pgx.Tx, portfolioID int64, holdings []backtest.Holding) error {
	query := `
		INSERT INTO portfolio_holdings (portfolio_id, ticker, name, weight, asset_type, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, h := range holdings {
		if _, err := tx.Exec(ctx, query,
			portfolioID, h.Ticker, h.Name, h.Weight, h.AssetType, h.Currency,
		); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Ticker, err)
		}
	}
	return nil
}
