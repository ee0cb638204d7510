package transactions

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yhchan/stockledger/internal/domain"
)

const dateFormat = "2006-01-02"

// Repository handles transaction database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

const txColumns = `id, portfolio_id, symbol, kind, date, shares, price, amount,
	commission, tax, transfer_fee, ratio, dividend_per_10, bonus_per_10,
	transfer_per_10, cycle_id, comment, created_at`

// Insert persists a new transaction. The seq column records insertion order
// within the symbol and is the tie-breaker for same-date replays.
func (r *Repository) Insert(t domain.Transaction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	err = tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions WHERE portfolio_id = ? AND symbol = ?`,
		t.PortfolioID, t.Symbol,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO transactions (`+txColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.PortfolioID,
		t.Symbol,
		int(t.Kind),
		t.Date.Format(dateFormat),
		t.Shares,
		t.Price,
		t.Amount,
		t.Commission,
		t.Tax,
		t.TransferFee,
		t.Ratio,
		t.DividendPer10,
		t.BonusPer10,
		t.TransferPer10,
		t.CycleID,
		t.Comment,
		t.CreatedAt.Format(time.RFC3339),
		seq,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Str("id", t.ID).Str("symbol", t.Symbol).Str("kind", t.Kind.String()).Msg("Transaction inserted")
	return nil
}

// Update replaces the stored fields of an existing transaction. The seq
// column is untouched so insertion order survives edits.
func (r *Repository) Update(t domain.Transaction) error {
	res, err := r.db.Exec(`
		UPDATE transactions SET
			portfolio_id = ?, symbol = ?, kind = ?, date = ?, shares = ?,
			price = ?, amount = ?, commission = ?, tax = ?, transfer_fee = ?,
			ratio = ?, dividend_per_10 = ?, bonus_per_10 = ?, transfer_per_10 = ?,
			cycle_id = ?, comment = ?
		WHERE id = ?
	`,
		t.PortfolioID,
		t.Symbol,
		int(t.Kind),
		t.Date.Format(dateFormat),
		t.Shares,
		t.Price,
		t.Amount,
		t.Commission,
		t.Tax,
		t.TransferFee,
		t.Ratio,
		t.DividendPer10,
		t.BonusPer10,
		t.TransferPer10,
		t.CycleID,
		t.Comment,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("transaction %s not found", t.ID)
	}

	r.log.Info().Str("id", t.ID).Str("symbol", t.Symbol).Msg("Transaction updated")
	return nil
}

// UpdateCycleID rewrites the cycle id of one transaction, used when edits or
// deletions shift cycle boundaries in the history.
func (r *Repository) UpdateCycleID(id string, cycleID int) error {
	_, err := r.db.Exec(`UPDATE transactions SET cycle_id = ? WHERE id = ?`, cycleID, id)
	if err != nil {
		return fmt.Errorf("failed to update cycle id: %w", err)
	}
	return nil
}

// Delete removes a transaction by id.
func (r *Repository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}

	r.log.Info().Str("id", id).Msg("Transaction deleted")
	return nil
}

// GetByID returns one transaction, or nil when it does not exist.
func (r *Repository) GetByID(id string) (*domain.Transaction, error) {
	rows, err := r.db.Query(`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	t, err := scanTransaction(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

// ListBySymbol returns a symbol's full history ordered by date, ties broken
// by insertion order. This ordering is the replay contract.
func (r *Repository) ListBySymbol(portfolioID, symbol string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT `+txColumns+` FROM transactions
		WHERE portfolio_id = ? AND symbol = ?
		ORDER BY date, seq
	`, portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// ListSymbols returns every symbol with any transaction history in the
// portfolio.
func (r *Repository) ListSymbols(portfolioID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT symbol FROM transactions WHERE portfolio_id = ? ORDER BY symbol
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

// ListPortfolios returns every portfolio id with transaction history.
func (r *Repository) ListPortfolios() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT portfolio_id FROM transactions ORDER BY portfolio_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return ids, nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var t domain.Transaction
	var kind int
	var date, createdAt string

	err := rows.Scan(
		&t.ID,
		&t.PortfolioID,
		&t.Symbol,
		&kind,
		&date,
		&t.Shares,
		&t.Price,
		&t.Amount,
		&t.Commission,
		&t.Tax,
		&t.TransferFee,
		&t.Ratio,
		&t.DividendPer10,
		&t.BonusPer10,
		&t.TransferPer10,
		&t.CycleID,
		&t.Comment,
		&createdAt,
	)
	if err != nil {
		return t, err
	}

	t.Kind = domain.Kind(kind)
	t.Symbol = strings.ToLower(strings.TrimSpace(t.Symbol))

	if t.Date, err = time.Parse(dateFormat, date); err != nil {
		return t, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return t, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return t, nil
}
