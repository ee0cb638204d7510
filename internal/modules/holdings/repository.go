package holdings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles holding database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new holding repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
	}
}

const holdingColumns = `portfolio_id, symbol, shares, hold_cost, diluted_cost,
	buy_amount, sell_amount, dividends, buy_fees, sell_fees, other_fees,
	active, opened_at, liquidated_at, updated_at`

// Upsert inserts or replaces a holding row.
func (r *Repository) Upsert(h Holding) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO holdings (`+holdingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.PortfolioID,
		h.Symbol,
		h.Shares,
		h.HoldCost,
		h.DilutedCost,
		h.BuyAmount,
		h.SellAmount,
		h.Dividends,
		h.BuyFees,
		h.SellFees,
		h.OtherFees,
		boolToInt(h.Active),
		nullTime(h.OpenedAt),
		nullTime(h.LiquidatedAt),
		h.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Str("symbol", h.Symbol).Str("shares", h.Shares.String()).Msg("Holding upserted")
	return nil
}

// Delete removes a holding row. Deleting a missing row is not an error:
// recompute calls delete whenever replay yields nothing to keep.
func (r *Repository) Delete(portfolioID, symbol string) error {
	res, err := r.db.Exec(`DELETE FROM holdings WHERE portfolio_id = ? AND symbol = ?`, portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected > 0 {
		r.log.Info().Str("symbol", symbol).Msg("Holding deleted")
	}
	return nil
}

// Get returns one holding, or nil when none is persisted.
func (r *Repository) Get(portfolioID, symbol string) (*Holding, error) {
	rows, err := r.db.Query(`
		SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? AND symbol = ?
	`, portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	h, err := scanHolding(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan holding: %w", err)
	}
	return &h, nil
}

// List returns every holding in the portfolio, active and inactive. Closed
// holdings still carry the lifetime totals the portfolio overview needs.
func (r *Repository) List(portfolioID string) ([]Holding, error) {
	rows, err := r.db.Query(`
		SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? ORDER BY symbol
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

func scanHolding(rows *sql.Rows) (Holding, error) {
	var h Holding
	var active int
	var openedAt, liquidatedAt sql.NullString
	var updatedAt string

	err := rows.Scan(
		&h.PortfolioID,
		&h.Symbol,
		&h.Shares,
		&h.HoldCost,
		&h.DilutedCost,
		&h.BuyAmount,
		&h.SellAmount,
		&h.Dividends,
		&h.BuyFees,
		&h.SellFees,
		&h.OtherFees,
		&active,
		&openedAt,
		&liquidatedAt,
		&updatedAt,
	)
	if err != nil {
		return h, err
	}

	h.Active = active != 0
	if openedAt.Valid {
		if h.OpenedAt, err = time.Parse(time.RFC3339, openedAt.String); err != nil {
			return h, fmt.Errorf("invalid opened_at %q: %w", openedAt.String, err)
		}
	}
	if liquidatedAt.Valid {
		if h.LiquidatedAt, err = time.Parse(time.RFC3339, liquidatedAt.String); err != nil {
			return h, fmt.Errorf("invalid liquidated_at %q: %w", liquidatedAt.String, err)
		}
	}
	if h.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return h, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return h, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
