package transactions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yhchan/stockledger/internal/domain"
	"github.com/yhchan/stockledger/internal/modules/cycles"
	"github.com/yhchan/stockledger/internal/modules/replay"
)

// Recomputer rebuilds the derived holding for one symbol after its history
// changed. Implemented by the holdings service.
type Recomputer interface {
	Recompute(ctx context.Context, portfolioID, symbol string) error
}

// RecomputeError wraps a holding recompute failure that happened after the
// transaction write was already committed. The write stands; the holding is
// stale until the next recompute, which is safe to retry because recompute
// is idempotent.
type RecomputeError struct {
	Err error
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("holding recompute failed: %v", e.Err)
}

func (e *RecomputeError) Unwrap() error {
	return e.Err
}

// Service is the transaction write path: dispatch to a handler, persist the
// canonical record, then trigger a full holding recompute for the symbol.
type Service struct {
	repo       *Repository
	dispatcher *Dispatcher
	recomputer Recomputer
	log        zerolog.Logger
}

// NewService creates a new transaction service
func NewService(repo *Repository, dispatcher *Dispatcher, recomputer Recomputer, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		recomputer: recomputer,
		log:        log.With().Str("service", "transactions").Logger(),
	}
}

// Create processes and persists one new transaction. A non-nil transaction
// with a *RecomputeError means the write committed but the derived holding
// could not be rebuilt yet.
func (s *Service) Create(ctx context.Context, in Input) (*domain.Transaction, error) {
	history, err := s.repo.ListBySymbol(in.PortfolioID, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	tx, err := s.dispatcher.Process(ctx, in, history)
	if err != nil {
		return nil, err
	}
	tx.ID = uuid.NewString()
	tx.CreatedAt = time.Now().UTC()

	// The dispatcher only checked the end state of history. A back-dated
	// record must also replay cleanly from its chronological position, and
	// takes the cycle id of that position, not of the latest cycle.
	prospective := inserted(history, *tx)
	if _, err := replay.Reduce(prospective); err != nil {
		return nil, err
	}
	tx.CycleID = cycles.Reassign(prospective)[tx.ID]

	if err := s.repo.Insert(*tx); err != nil {
		return nil, err
	}
	if err := s.reassignCycles(tx.PortfolioID, tx.Symbol); err != nil {
		return nil, err
	}

	return tx, s.recompute(ctx, tx.PortfolioID, tx.Symbol)
}

// Update replaces an existing transaction's fact. The prospective history is
// replayed before anything is written, so an edit that would leave a later
// sell overdrawn is rejected up front. The symbol and portfolio of a record
// cannot change; delete and recreate instead.
func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.Transaction, error) {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewValidationError(fmt.Sprintf("transaction %s not found", id))
	}
	if in.Symbol != existing.Symbol || in.PortfolioID != existing.PortfolioID {
		return nil, domain.NewValidationError("cannot move a transaction to another symbol or portfolio")
	}

	history, err := s.repo.ListBySymbol(in.PortfolioID, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	// Dispatch against the history without the edited record, then verify
	// the full replacement history replays cleanly before committing.
	tx, err := s.dispatcher.Process(ctx, in, without(history, id))
	if err != nil {
		return nil, err
	}
	tx.ID = existing.ID
	tx.CreatedAt = existing.CreatedAt

	prospective := replaced(history, *tx)
	if _, err := replay.Reduce(prospective); err != nil {
		return nil, err
	}
	tx.CycleID = cycles.Reassign(prospective)[tx.ID]

	if err := s.repo.Update(*tx); err != nil {
		return nil, err
	}
	if err := s.reassignCycles(in.PortfolioID, in.Symbol); err != nil {
		return nil, err
	}

	return tx, s.recompute(ctx, tx.PortfolioID, tx.Symbol)
}

// Delete removes a transaction. Like Update, it rejects deletions that would
// leave the remaining history unreplayable.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.NewValidationError(fmt.Sprintf("transaction %s not found", id))
	}

	history, err := s.repo.ListBySymbol(existing.PortfolioID, existing.Symbol)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if _, err := replay.Reduce(without(history, id)); err != nil {
		return err
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.reassignCycles(existing.PortfolioID, existing.Symbol); err != nil {
		return err
	}

	return s.recompute(ctx, existing.PortfolioID, existing.Symbol)
}

// Import applies a bulk batch of transactions. Inputs are grouped by symbol
// and each group is sorted by date (ties keep input order) before any of it
// is applied, so a sell submitted ahead of its earlier buy still lands in
// the right place. Exactly one recompute runs per symbol.
func (s *Service) Import(ctx context.Context, inputs []Input) ([]domain.Transaction, error) {
	groups := make(map[string][]Input)
	var order []string
	for _, in := range inputs {
		key := in.PortfolioID + "\x00" + in.Symbol
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], in)
	}

	var created []domain.Transaction
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})

		history, err := s.repo.ListBySymbol(group[0].PortfolioID, group[0].Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}

		var pending []domain.Transaction
		for _, in := range group {
			tx, err := s.dispatcher.Process(ctx, in, history)
			if err != nil {
				return nil, fmt.Errorf("import of %s %s on %s: %w",
					in.Symbol, in.Kind, in.Date.Format(dateFormat), err)
			}
			tx.ID = uuid.NewString()
			tx.CreatedAt = time.Now().UTC()

			// Records may be back-dated relative to committed history;
			// replay from their chronological position before accepting.
			history = inserted(history, *tx)
			if _, err := replay.Reduce(history); err != nil {
				return nil, fmt.Errorf("import of %s %s on %s: %w",
					in.Symbol, in.Kind, in.Date.Format(dateFormat), err)
			}
			pending = append(pending, *tx)
		}

		ids := cycles.Reassign(history)
		for i := range pending {
			pending[i].CycleID = ids[pending[i].ID]
		}

		for _, tx := range pending {
			if err := s.repo.Insert(tx); err != nil {
				return nil, err
			}
		}
		created = append(created, pending...)

		if err := s.reassignCycles(group[0].PortfolioID, group[0].Symbol); err != nil {
			return nil, err
		}
		if err := s.recompute(ctx, group[0].PortfolioID, group[0].Symbol); err != nil {
			return created, err
		}
	}

	return created, nil
}

// reassignCycles rewrites stored cycle ids from a fresh derivation. Edits
// and deletions can shift the liquidation points that bound cycles, which
// would otherwise leave gaps behind.
func (s *Service) reassignCycles(portfolioID, symbol string) error {
	history, err := s.repo.ListBySymbol(portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	for id, cycleID := range cycles.Reassign(history) {
		for _, tx := range history {
			if tx.ID == id && tx.CycleID != cycleID {
				if err := s.repo.UpdateCycleID(id, cycleID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Service) recompute(ctx context.Context, portfolioID, symbol string) error {
	if s.recomputer == nil {
		return nil
	}
	if err := s.recomputer.Recompute(ctx, portfolioID, symbol); err != nil {
		// The transaction write is already committed; the holding stays
		// stale until the next recompute (idempotent, safe to retry).
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Holding recompute failed after committed write")
		return &RecomputeError{Err: err}
	}
	return nil
}

func without(history []domain.Transaction, id string) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(history))
	for _, tx := range history {
		if tx.ID != id {
			out = append(out, tx)
		}
	}
	return out
}

// inserted places a new record at its chronological position. Same-date
// records keep insertion order, matching the repository's date-then-seq
// replay ordering.
func inserted(history []domain.Transaction, tx domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, tx)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func replaced(history []domain.Transaction, tx domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(history))
	for _, h := range history {
		if h.ID == tx.ID {
			out = append(out, tx)
		} else {
			out = append(out, h)
		}
	}
	// An edit may have moved the record's date; restore replay order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
