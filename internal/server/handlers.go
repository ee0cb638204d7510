package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
	"github.com/yhchan/stockledger/internal/modules/holdings"
	"github.com/yhchan/stockledger/internal/modules/overview"
	"github.com/yhchan/stockledger/internal/modules/transactions"
)

const dateFormat = "2006-01-02"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "stockledger",
	})
}

// transactionRequest is the JSON body for creating or updating a
// transaction.
type transactionRequest struct {
	PortfolioID   string          `json:"portfolio_id"`
	Symbol        string          `json:"symbol"`
	Kind          string          `json:"kind"`
	Date          string          `json:"date"`
	Shares        decimal.Decimal `json:"shares"`
	Price         decimal.Decimal `json:"price"`
	Ratio         decimal.Decimal `json:"ratio"`
	DividendPer10 decimal.Decimal `json:"dividend_per_10"`
	BonusPer10    decimal.Decimal `json:"bonus_per_10"`
	TransferPer10 decimal.Decimal `json:"transfer_per_10"`
	Comment       string          `json:"comment"`
}

func (req transactionRequest) toInput() (transactions.Input, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return transactions.Input{}, err
	}

	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		return transactions.Input{}, domain.NewValidationError("date must be formatted YYYY-MM-DD")
	}

	portfolioID := req.PortfolioID
	if portfolioID == "" {
		portfolioID = "default"
	}

	return transactions.Input{
		PortfolioID:   portfolioID,
		Symbol:        req.Symbol,
		Kind:          kind,
		Date:          date,
		Shares:        req.Shares,
		Price:         req.Price,
		Ratio:         req.Ratio,
		DividendPer10: req.DividendPer10,
		BonusPer10:    req.BonusPer10,
		TransferPer10: req.TransferPer10,
		Comment:       req.Comment,
	}, nil
}

// handleCreateTransaction handles POST /api/transactions
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	tx, err := s.txService.Create(r.Context(), in)
	s.writeTransactionResult(w, http.StatusCreated, tx, err)
}

// handleUpdateTransaction handles PUT /api/transactions/{id}
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	tx, err := s.txService.Update(r.Context(), chi.URLParam(r, "id"), in)
	s.writeTransactionResult(w, http.StatusOK, tx, err)
}

// handleDeleteTransaction handles DELETE /api/transactions/{id}
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := s.txService.Delete(r.Context(), chi.URLParam(r, "id"))

	var recomputeErr *transactions.RecomputeError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
	case errors.As(err, &recomputeErr):
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"deleted":         true,
			"recompute_error": recomputeErr.Error(),
		})
	default:
		s.writeDomainError(w, err)
	}
}

// handleImportTransactions handles POST /api/transactions/import
func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []transactionRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]transactions.Input, 0, len(req.Items))
	for _, item := range req.Items {
		in, err := item.toInput()
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		inputs = append(inputs, in)
	}

	created, err := s.txService.Import(r.Context(), inputs)
	if err != nil {
		var recomputeErr *transactions.RecomputeError
		if errors.As(err, &recomputeErr) {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"imported":        len(created),
				"recompute_error": recomputeErr.Error(),
			})
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"imported": len(created), "transactions": created})
}

// handleListTransactions handles GET /api/transactions?portfolio=&symbol=
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	portfolioID := portfolioParam(r)
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	txs, err := s.txRepo.ListBySymbol(portfolioID, symbol)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list transactions")
		s.writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, txs)
}

// handleListHoldings handles GET /api/holdings?portfolio=
func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	hs, err := s.holdingService.List(r.Context(), portfolioParam(r))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list holdings")
		s.writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}
	if hs == nil {
		hs = []holdings.Holding{}
	}
	s.writeJSON(w, http.StatusOK, hs)
}

// handleHoldingDetail handles GET /api/holdings/{symbol}?portfolio=
func (s *Server) handleHoldingDetail(w http.ResponseWriter, r *http.Request) {
	portfolioID := portfolioParam(r)
	symbol := chi.URLParam(r, "symbol")

	quote, err := s.quoteProvider.GetQuote(r.Context(), symbol)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch quote")
		s.writeError(w, http.StatusBadGateway, "failed to fetch quote")
		return
	}

	detail, err := s.holdingService.Detail(r.Context(), portfolioID, symbol, quote)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if detail == nil {
		s.writeError(w, http.StatusNotFound, "no holding for symbol")
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// handleRecompute handles POST /api/holdings/recompute?portfolio=&symbol=
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	portfolioID := portfolioParam(r)
	symbol := r.URL.Query().Get("symbol")

	if symbol == "" {
		if err := s.holdingService.RecomputeAll(r.Context(), portfolioID); err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"recomputed": "all"})
		return
	}

	h, err := s.holdingService.Recompute(r.Context(), portfolioID, symbol)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"holding": h})
}

// transferRequest is the JSON body for recording a cash transfer.
type transferRequest struct {
	PortfolioID string          `json:"portfolio_id"`
	Direction   string          `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Comment     string          `json:"comment"`
}

// handleCreateTransfer handles POST /api/transfers
func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}
	portfolioID := req.PortfolioID
	if portfolioID == "" {
		portfolioID = "default"
	}

	t, err := s.overviewService.RecordTransfer(r.Context(), portfolioID, overview.Direction(req.Direction), req.Amount, date, req.Comment)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, t)
}

// handleListTransfers handles GET /api/transfers?portfolio=
func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.overviewService.ListTransfers(r.Context(), portfolioParam(r))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list transfers")
		s.writeError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	if transfers == nil {
		transfers = []overview.Transfer{}
	}
	s.writeJSON(w, http.StatusOK, transfers)
}

// handleOverview handles GET /api/overview?portfolio=
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	portfolioID := portfolioParam(r)

	hs, err := s.holdingService.List(r.Context(), portfolioID)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list holdings")
		s.writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}

	quotes := make(map[string]domain.Quote)
	for _, h := range hs {
		if !h.Active {
			continue
		}
		quote, err := s.quoteProvider.GetQuote(r.Context(), h.Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", h.Symbol).Msg("Quote fetch failed, holding skipped in rollup")
			continue
		}
		quotes[h.Symbol] = quote
	}

	o, err := s.overviewService.Compute(r.Context(), portfolioID, quotes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, o)
}

// writeTransactionResult maps a write-path outcome to a response. A
// recompute failure after a committed write still returns the transaction;
// the client is told the holding is stale.
func (s *Server) writeTransactionResult(w http.ResponseWriter, okStatus int, tx *domain.Transaction, err error) {
	var recomputeErr *transactions.RecomputeError
	switch {
	case err == nil:
		s.writeJSON(w, okStatus, map[string]interface{}{"transaction": tx})
	case errors.As(err, &recomputeErr):
		s.writeJSON(w, okStatus, map[string]interface{}{
			"transaction":     tx,
			"recompute_error": recomputeErr.Error(),
		})
	default:
		s.writeDomainError(w, err)
	}
}

// writeDomainError maps domain errors onto HTTP statuses: validation
// failures are 400s, state violations 409s, anything else a 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var serr *domain.StateError
	switch {
	case errors.As(err, &verr):
		s.writeError(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &serr):
		s.writeError(w, http.StatusConflict, serr.Message)
	default:
		s.log.Error().Err(err).Msg("Internal error")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func portfolioParam(r *http.Request) string {
	if p := r.URL.Query().Get("portfolio"); p != "" {
		return p
	}
	return "default"
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
