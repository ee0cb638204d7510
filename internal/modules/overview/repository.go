package overview

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yhchan/stockledger/internal/domain"
)

const dateFormat = "2006-01-02"

// TransferRepository handles cash transfer database operations.
type TransferRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *sql.DB, log zerolog.Logger) *TransferRepository {
	return &TransferRepository{
		db:  db,
		log: log.With().Str("repo", "transfers").Logger(),
	}
}

// Insert persists a cash transfer.
func (r *TransferRepository) Insert(t Transfer) error {
	if t.Direction != DirectionDeposit && t.Direction != DirectionWithdraw {
		return domain.NewValidationError(fmt.Sprintf("unknown transfer direction %q", t.Direction))
	}
	if !t.Amount.IsPositive() {
		return domain.NewValidationError("transfer amount must be positive")
	}

	_, err := r.db.Exec(`
		INSERT INTO transfers (id, portfolio_id, direction, amount, date, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.PortfolioID,
		string(t.Direction),
		t.Amount,
		t.Date.Format(dateFormat),
		t.Comment,
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	r.log.Info().Str("id", t.ID).Str("direction", string(t.Direction)).Msg("Transfer inserted")
	return nil
}

// Delete removes a transfer by id.
func (r *TransferRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("transfer %s not found", id)
	}
	return nil
}

// List returns all transfers in a portfolio ordered by date.
func (r *TransferRepository) List(portfolioID string) ([]Transfer, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, direction, amount, date, comment, created_at
		FROM transfers WHERE portfolio_id = ? ORDER BY date, created_at
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		var direction, date, createdAt string
		if err := rows.Scan(&t.ID, &t.PortfolioID, &direction, &t.Amount, &date, &t.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		t.Direction = Direction(direction)
		if t.Date, err = time.Parse(dateFormat, date); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", date, err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}
	return transfers, nil
}
