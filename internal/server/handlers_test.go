package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhchan/stockledger/internal/config"
	"github.com/yhchan/stockledger/internal/database"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newTestServer builds a server over an in-memory database with quotes
// served by a local stub.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	quoteStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`var hq_str_sh600000="浦发银行,10.20,11.80,12.00,12.10,11.70";`))
	}))
	t.Cleanup(quoteStub.Close)

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	cfg := &config.Config{
		Port:              0,
		LogLevel:          "disabled",
		QuoteBaseURL:      quoteStub.URL,
		QuoteCacheSeconds: 60,
		Fees: config.FeeSchedule{
			EquityCommissionRate: d("0.0003"),
			EquityCommissionMin:  d("5"),
			FundCommissionRate:   d("0.0003"),
			FundCommissionMin:    d("5"),
			StampTaxRate:         d("0.0005"),
			TransferFeeRate:      d("0.00001"),
		},
	}

	return New(Config{
		Port:   0,
		Log:    zerolog.Nop(),
		DB:     db,
		Config: cfg,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func buyBody(shares, price string) map[string]interface{} {
	return map[string]interface{}{
		"symbol": "sh600000",
		"kind":   "buy",
		"date":   "2026-01-05",
		"shares": shares,
		"price":  price,
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestCreateTransactionFlow(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", buyBody("1000", "10"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	tx := body["transaction"].(map[string]interface{})
	assert.Equal(t, "sh600000", tx["symbol"])
	assert.Equal(t, "10000", fmt.Sprint(tx["amount"]))
	assert.Nil(t, body["recompute_error"])

	// The derived holding is visible immediately.
	rec = doJSON(t, s, http.MethodGet, "/api/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	require.Len(t, hs, 1)
	assert.Equal(t, "1000", fmt.Sprint(hs[0]["shares"]))
	// (10000 + 5 commission + 0.1 transfer fee) / 1000
	assert.Equal(t, "10.0051", fmt.Sprint(hs[0]["hold_cost"]))

	rec = doJSON(t, s, http.MethodGet, "/api/transactions?symbol=sh600000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t)

	body := buyBody("1000", "10")
	body["symbol"] = "not-a-symbol"
	rec := doJSON(t, s, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = buyBody("1000", "10")
	body["kind"] = "short"
	rec = doJSON(t, s, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = buyBody("1000", "10")
	body["date"] = "05/01/2026"
	rec = doJSON(t, s, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOversellReturnsConflict(t *testing.T) {
	s := newTestServer(t)

	body := buyBody("100", "10")
	body["kind"] = "sell"
	rec := doJSON(t, s, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", buyBody("1000", "10"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["transaction"].(map[string]interface{})["id"].(string)

	rec = doJSON(t, s, http.MethodPut, "/api/transactions/"+id, buyBody("2000", "10"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody(t, rec)["transaction"].(map[string]interface{})
	assert.Equal(t, "20000", fmt.Sprint(updated["amount"]))

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["deleted"])

	// With the history gone, the holding row is gone too.
	rec = doJSON(t, s, http.MethodGet, "/api/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestImportEndpoint(t *testing.T) {
	s := newTestServer(t)

	sell := buyBody("400", "11")
	sell["kind"] = "sell"
	sell["date"] = "2026-01-10"

	rec := doJSON(t, s, http.MethodPost, "/api/transactions/import", map[string]interface{}{
		"items": []map[string]interface{}{sell, buyBody("1000", "10")},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decodeBody(t, rec)["imported"])
}

func TestHoldingDetailEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", buyBody("1000", "10"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/holdings/sh600000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	// 1000 shares at the stubbed price of 12.
	assert.Equal(t, "12000", fmt.Sprint(body["market_value"]))

	rec = doJSON(t, s, http.MethodGet, "/api/holdings/sh999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecomputeEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", buyBody("1000", "10"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/holdings/recompute?symbol=sh600000", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/holdings/recompute", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransfersAndOverview(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transfers", map[string]interface{}{
		"direction": "deposit",
		"amount":    "20000",
		"date":      "2026-01-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", buyBody("1000", "10"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)

	assert.Equal(t, "20000", fmt.Sprint(body["principal"]))
	assert.Equal(t, "12000", fmt.Sprint(body["market_value"]))
	// 20000 - 10000 - 5 commission - 0.1 transfer fee
	assert.Equal(t, "9994.9", fmt.Sprint(body["cash"]))
	assert.Equal(t, "21994.9", fmt.Sprint(body["total_assets"]))

	rec = doJSON(t, s, http.MethodGet, "/api/transfers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var transfers []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transfers))
	assert.Len(t, transfers, 1)
}

func TestTransferValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transfers", map[string]interface{}{
		"direction": "sideways",
		"amount":    "100",
		"date":      "2026-01-02",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
