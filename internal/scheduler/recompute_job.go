package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yhchan/stockledger/internal/modules/holdings"
	"github.com/yhchan/stockledger/internal/modules/transactions"
)

// RecomputeJob rebuilds every holding in every portfolio from its
// transaction history. Holdings are pure functions of history, so the
// nightly run also repairs any row left stale by a recompute failure during
// the day.
type RecomputeJob struct {
	holdingService *holdings.Service
	txRepo         *transactions.Repository
	log            zerolog.Logger
}

// NewRecomputeJob creates the nightly batch recompute job.
func NewRecomputeJob(holdingService *holdings.Service, txRepo *transactions.Repository, log zerolog.Logger) *RecomputeJob {
	return &RecomputeJob{
		holdingService: holdingService,
		txRepo:         txRepo,
		log:            log.With().Str("job", "recompute").Logger(),
	}
}

// Name implements Job.
func (j *RecomputeJob) Name() string {
	return "holding_recompute"
}

// Run implements Job.
func (j *RecomputeJob) Run() error {
	ctx := context.Background()

	portfolios, err := j.txRepo.ListPortfolios()
	if err != nil {
		return fmt.Errorf("failed to list portfolios: %w", err)
	}

	for _, portfolioID := range portfolios {
		if err := j.holdingService.RecomputeAll(ctx, portfolioID); err != nil {
			return fmt.Errorf("portfolio %s: %w", portfolioID, err)
		}
	}

	j.log.Info().Int("portfolios", len(portfolios)).Msg("Nightly recompute finished")
	return nil
}
