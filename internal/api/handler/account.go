package handler

import (
	"net/http"
	"strconv"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	svc  *service.AccountService
	gate *service.ValidationGate
}

func NewAccountHandler(svc *service.AccountService, gate *service.ValidationGate) *AccountHandler {
	return &AccountHandler{svc: svc, gate: gate}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "create account failed")
		return
	}
	RespondJSON(w, http.StatusCreated, models.NewAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}

	account, err := h.svc.GetAccount(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err, "get account failed")
		return
	}
	RespondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	statement, err := h.svc.ListTransactions(r.Context(), accountID, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err, "list transactions failed")
		return
	}
	RespondJSON(w, http.StatusOK, statement)
}

// Validate runs the validation gate without mutating anything.
func (h *AccountHandler) Validate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}

	op, err := domain.ParseOperation(r.URL.Query().Get("operation"))
	if err != nil {
		respondServiceError(w, r, &service.ValidationError{Fields: map[string]string{"operation": "must be a supported operation"}}, "")
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || !domain.IsValidTransactionAmount(amount) {
		respondServiceError(w, r, &service.ValidationError{Fields: map[string]string{"amount": "must be a positive amount with at most 2 decimals"}}, "")
		return
	}

	verdict, err := h.gate.Validate(r.Context(), accountID, amount, op)
	if err != nil {
		respondServiceError(w, r, err, "validate account failed")
		return
	}
	RespondJSON(w, http.StatusOK, models.ValidationResponse{
		Valid:        verdict.Valid,
		ErrorCode:    string(verdict.ErrorCode),
		ErrorMessage: verdict.ErrorMessage,
	})
}

func (h *AccountHandler) SetAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.svc.SetAccountStatus(r.Context(), accountID, req)
	if err != nil {
		respondServiceError(w, r, err, "set account status failed")
		return
	}
	RespondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *AccountHandler) SetClientStatus(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	client, err := h.svc.SetClientStatus(r.Context(), clientID, req)
	if err != nil {
		respondServiceError(w, r, err, "set client status failed")
		return
	}
	RespondJSON(w, http.StatusOK, models.NewClientResponse(client))
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}
