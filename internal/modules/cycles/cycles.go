// Package cycles assigns and verifies position cycle ids. A cycle is one
// maximal interval during which a symbol's held shares stay above zero;
// cycle ids for a symbol form the contiguous sequence 1..N.
package cycles

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
	"github.com/yhchan/stockledger/internal/modules/replay"
)

// Manager decides which cycle id a new transaction belongs to, given the
// symbol's existing ordered history. It is stateless: both decisions and
// checks are pure functions of the supplied history.
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a cycle manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log.With().Str("component", "cycles").Logger()}
}

// Assign returns the cycle id for a new transaction of the given kind
// appended to history.
//
// A buy from zero shares allocates the next id; a buy into an open position
// reuses the latest id. Sells and corporate actions always reuse the latest
// id; with no open position they are state errors, never auto-corrected.
func (m *Manager) Assign(history []domain.Transaction, kind domain.Kind) (int, error) {
	agg, err := replay.Reduce(history)
	if err != nil {
		return 0, fmt.Errorf("failed to replay history for cycle assignment: %w", err)
	}

	latest := maxCycleID(history)

	switch kind {
	case domain.KindBuy:
		if agg.Shares.IsZero() {
			m.log.Debug().Int("cycle_id", latest+1).Msg("Opening new position cycle")
			return latest + 1, nil
		}
		return latest, nil

	case domain.KindSell:
		if !agg.Shares.IsPositive() {
			return 0, domain.NewStateError("cannot sell with no open position")
		}
		return latest, nil

	case domain.KindMerge, domain.KindSplit, domain.KindDividend:
		if latest == 0 {
			return 0, domain.NewStateError(fmt.Sprintf(
				"cannot record %s with no position history", kind))
		}
		return latest, nil

	default:
		return 0, domain.NewValidationError(fmt.Sprintf("unknown transaction kind %d", kind))
	}
}

// CurrentShares replays the history and returns the held share count.
func (m *Manager) CurrentShares(history []domain.Transaction) (decimal.Decimal, error) {
	agg, err := replay.Reduce(history)
	if err != nil {
		return decimal.Zero, err
	}
	return agg.Shares, nil
}

// VerifyContiguity checks that the cycle ids present in history form the
// exact sequence 1..N. A gap means corrupted or partially replayed data and
// fails loudly as a StateError.
func VerifyContiguity(history []domain.Transaction) error {
	seen := make(map[int]bool)
	max := 0
	for _, tx := range history {
		if tx.CycleID < 1 {
			return domain.NewStateError(fmt.Sprintf(
				"transaction %s has invalid cycle id %d", tx.ID, tx.CycleID))
		}
		seen[tx.CycleID] = true
		if tx.CycleID > max {
			max = tx.CycleID
		}
	}
	for id := 1; id <= max; id++ {
		if !seen[id] {
			return domain.NewStateError(fmt.Sprintf(
				"cycle id sequence has a gap: %d of %d missing", id, max))
		}
	}
	return nil
}

// Reassign derives cycle ids for an entire ordered history from scratch and
// returns them keyed by transaction id. Used after edits or deletions, which
// can shift cycle boundaries of records written later.
func Reassign(history []domain.Transaction) map[string]int {
	ids := make(map[string]int, len(history))
	shares := decimal.Zero
	current := 0

	for _, tx := range history {
		switch tx.Kind {
		case domain.KindBuy:
			if shares.IsZero() {
				current++
			}
			shares = shares.Add(tx.Shares)
		case domain.KindSell:
			shares = shares.Sub(tx.Shares)
		case domain.KindMerge:
			if tx.Ratio.IsPositive() {
				shares = shares.Div(tx.Ratio)
			}
		case domain.KindSplit:
			shares = shares.Mul(tx.Ratio)
		case domain.KindDividend:
			base := shares
			ten := decimal.NewFromInt(10)
			shares = shares.
				Add(tx.BonusPer10.Div(ten).Mul(base)).
				Add(tx.TransferPer10.Div(ten).Mul(base))
		}
		if current == 0 {
			// History that starts with a non-buy is already invalid; pin
			// such records to cycle 1 so contiguity still holds.
			current = 1
		}
		ids[tx.ID] = current
	}
	return ids
}

func maxCycleID(history []domain.Transaction) int {
	max := 0
	for _, tx := range history {
		if tx.CycleID > max {
			max = tx.CycleID
		}
	}
	return max
}
