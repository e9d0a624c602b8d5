package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayo6706/ledger-engine/internal/api"
	"github.com/ayo6706/ledger-engine/internal/config"
	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/memstore"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// unavailableStore reads from memory but fails every unit of work.
type unavailableStore struct {
	*memstore.Store
}

func (unavailableStore) RunInTx(context.Context, func(domain.UnitOfWork) error) error {
	return fmt.Errorf("begin transaction: %w", domain.ErrStoreUnavailable)
}

func setupAPI(store domain.Store) chi.Router {
	cfg := &config.Config{PublicRateLimitRPS: 1000}
	txSvc := service.NewTransactionService(store, nil)
	accountSvc := service.NewAccountService(store, nil)
	return api.NewRouter(cfg, zap.NewNop(), txSvc, accountSvc, nil, nil).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func createAccount(t *testing.T, h http.Handler, balance, limit string) string {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/v1/accounts", map[string]any{
		"client_id":       uuid.NewString(),
		"client_name":     "Acme",
		"initial_balance": balance,
		"credit_limit":    limit,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["account_id"].(string)
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	h := setupAPI(memstore.New())
	accountID := createAccount(t, h, "100.00", "1000.00")

	credit := map[string]any{
		"operation":    "credit",
		"account_id":   accountID,
		"amount":       "50.00",
		"reference_id": "http-credit-1",
	}
	w := doJSON(t, h, http.MethodPost, "/v1/transactions", credit)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get("X-Idempotent-Replay"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	first := decode(t, w)
	assert.Equal(t, "success", first["status"])
	assert.Equal(t, "150.00", first["balance"])
	assert.Equal(t, "150.00", first["available_balance"])

	w = doJSON(t, h, http.MethodPost, "/v1/transactions", credit)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Idempotent-Replay"))
	replay := decode(t, w)
	assert.Equal(t, first["transaction_id"], replay["transaction_id"])
	assert.Equal(t, first["balance"], replay["balance"])

	w = doJSON(t, h, http.MethodGet, "/v1/transactions/http-credit-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first["transaction_id"], decode(t, w)["transaction_id"])

	w = doJSON(t, h, http.MethodGet, "/v1/accounts/"+accountID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "150.00", decode(t, w)["balance"])

	w = doJSON(t, h, http.MethodGet, "/v1/accounts/"+accountID+"/transactions?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	statement := decode(t, w)
	assert.Len(t, statement["transactions"], 1)
	assert.Equal(t, float64(10), statement["page_size"])
}

func TestBusinessRejectionIsA200FailedResponse(t *testing.T) {
	h := setupAPI(memstore.New())
	accountID := createAccount(t, h, "10.00", "10.00")

	w := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"operation":    "debit",
		"account_id":   accountID,
		"amount":       "25.00",
		"reference_id": "http-debit-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, string(domain.CodeInsufficientBalance), body["error_code"])
	assert.Equal(t, "10.00", body["balance"])
}

func TestUnknownAccountIsSynthesizedFailure(t *testing.T) {
	h := setupAPI(memstore.New())

	w := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"operation":    "credit",
		"account_id":   uuid.NewString(),
		"amount":       "1.00",
		"reference_id": "http-ghost",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.CodeAccountNotFound), decode(t, w)["error_code"])

	w = doJSON(t, h, http.MethodGet, "/v1/transactions/http-ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRFC7807ProblemDetails(t *testing.T) {
	h := setupAPI(memstore.New())

	w := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"operation":    "teleport",
		"account_id":   "not-a-uuid",
		"amount":       "1.00",
		"reference_id": "bad ref!",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	body := decode(t, w)
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/transactions", body["instance"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, string(domain.CodeValidationFailed), body["code"])

	fields, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "operation")
	assert.Contains(t, fields, "account_id")
	assert.Contains(t, fields, "reference_id")
}

func TestMalformedBodyIsRejected(t *testing.T) {
	h := setupAPI(memstore.New())
	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInfrastructureFailureIsRetryable503(t *testing.T) {
	mem := memstore.New()
	accountID := createAccount(t, setupAPI(mem), "100.00", "100.00")
	h := setupAPI(unavailableStore{mem})

	w := doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"operation":    "debit",
		"account_id":   accountID,
		"amount":       "1.00",
		"reference_id": "http-outage",
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	body := decode(t, w)
	assert.Equal(t, string(domain.CodeStoreUnavailable), body["code"])
	assert.Equal(t, true, body["retryable"])
	assert.Equal(t, 0, mem.TransactionCount("http-outage"))
}

func TestAccountCreationRejections(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantErr  string
	}{
		{
			name:     "balance over limit",
			body:     map[string]any{"client_id": uuid.NewString(), "initial_balance": "500.00", "credit_limit": "100.00"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  string(domain.CodeInitialBalanceOverLimit),
		},
		{
			name:     "negative limit",
			body:     map[string]any{"client_id": uuid.NewString(), "initial_balance": "0", "credit_limit": "-1"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  string(domain.CodeInvalidCreditLimit),
		},
		{
			name:     "bad client id",
			body:     map[string]any{"client_id": "nope"},
			wantCode: http.StatusBadRequest,
			wantErr:  string(domain.CodeValidationFailed),
		},
	}

	h := setupAPI(memstore.New())
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/v1/accounts", tc.body)
			require.Equal(t, tc.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tc.wantErr, decode(t, w)["code"])
		})
	}
}

func TestAccountLookupErrors(t *testing.T) {
	h := setupAPI(memstore.New())

	w := doJSON(t, h, http.MethodGet, "/v1/accounts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, "/v1/accounts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodGet, "/v1/accounts/"+uuid.NewString()+"/transactions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationEndpoint(t *testing.T) {
	h := setupAPI(memstore.New())
	accountID := createAccount(t, h, "100.00", "100.00")

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantValid bool
		wantError string
	}{
		{name: "debit within balance", query: "operation=debit&amount=50.00", wantCode: http.StatusOK, wantValid: true},
		{name: "debit beyond credit", query: "operation=debit&amount=250.00", wantCode: http.StatusOK, wantError: string(domain.CodeInsufficientBalance)},
		{name: "reversal without history", query: "operation=reversal&amount=1.00", wantCode: http.StatusOK, wantError: string(domain.CodeNoTransactionsToReverse)},
		{name: "unknown operation", query: "operation=mint&amount=1.00", wantCode: http.StatusBadRequest},
		{name: "bad amount", query: "operation=debit&amount=1.001", wantCode: http.StatusBadRequest},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodGet, "/v1/accounts/"+accountID+"/validation?"+tc.query, nil)
			require.Equal(t, tc.wantCode, w.Code, w.Body.String())
			if tc.wantCode != http.StatusOK {
				return
			}
			body := decode(t, w)
			assert.Equal(t, tc.wantValid, body["valid"])
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, body["error_code"])
			}
		})
	}
}

func TestStatusChangesFreezeAccount(t *testing.T) {
	h := setupAPI(memstore.New())
	accountID := createAccount(t, h, "100.00", "100.00")

	w := doJSON(t, h, http.MethodPatch, "/v1/accounts/"+accountID+"/status", map[string]any{"status": "blocked"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "blocked", decode(t, w)["status"])

	w = doJSON(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"operation":    "debit",
		"account_id":   accountID,
		"amount":       "1.00",
		"reference_id": "http-frozen",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.CodeAccountInactive), decode(t, w)["error_code"])

	w = doJSON(t, h, http.MethodPatch, "/v1/accounts/"+accountID+"/status", map[string]any{"status": "frozen"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPatch, "/v1/clients/"+uuid.NewString()+"/status", map[string]any{"status": "inactive"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndDocs(t *testing.T) {
	h := setupAPI(memstore.New())

	for _, path := range []string{"/health/live", "/health/ready", "/openapi.yaml", "/metrics"} {
		w := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
