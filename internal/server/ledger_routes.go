package server

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yhchan/stockledger/internal/modules/cycles"
	"github.com/yhchan/stockledger/internal/modules/holdings"
	"github.com/yhchan/stockledger/internal/modules/overview"
	"github.com/yhchan/stockledger/internal/modules/quotes"
	"github.com/yhchan/stockledger/internal/modules/transactions"
)

// setupServices wires the ledger module graph.
func (s *Server) setupServices() {
	conn := s.db.Conn()

	s.txRepo = transactions.NewRepository(conn, s.log)
	holdingRepo := holdings.NewRepository(conn, s.log)
	s.holdingService = holdings.NewService(holdingRepo, s.txRepo, s.log)

	cycleMgr := cycles.NewManager(s.log)
	dispatcher := transactions.NewDispatcher(s.cfg.Fees, cycleMgr, s.holdingService, s.log)
	s.txService = transactions.NewService(s.txRepo, dispatcher, recomputeAdapter{s.holdingService}, s.log)

	transferRepo := overview.NewTransferRepository(conn, s.log)
	s.overviewService = overview.NewService(transferRepo, s.holdingService, s.log)

	cache := quotes.NewTTLCache(time.Duration(s.cfg.QuoteCacheSeconds) * time.Second)
	s.quoteProvider = quotes.NewCachedProvider(quotes.NewSinaProvider(s.cfg.QuoteBaseURL), cache)
}

// setupLedgerRoutes registers the ledger API.
func (s *Server) setupLedgerRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.handleListTransactions)
		r.Post("/", s.handleCreateTransaction)
		r.Post("/import", s.handleImportTransactions)
		r.Put("/{id}", s.handleUpdateTransaction)
		r.Delete("/{id}", s.handleDeleteTransaction)
	})

	r.Route("/holdings", func(r chi.Router) {
		r.Get("/", s.handleListHoldings)
		r.Get("/{symbol}", s.handleHoldingDetail)
		r.Post("/recompute", s.handleRecompute)
	})

	r.Route("/transfers", func(r chi.Router) {
		r.Get("/", s.handleListTransfers)
		r.Post("/", s.handleCreateTransfer)
	})

	r.Get("/overview", s.handleOverview)
}

// recomputeAdapter lets the transaction service trigger holding recomputes
// without depending on the holdings package's return shape.
type recomputeAdapter struct {
	holdings *holdings.Service
}

func (a recomputeAdapter) Recompute(ctx context.Context, portfolioID, symbol string) error {
	_, err := a.holdings.Recompute(ctx, portfolioID, symbol)
	return err
}
