package handler

import (
	"net/http"

	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

// ReplayHeader marks a response served from an already-recorded transaction.
const ReplayHeader = "X-Idempotent-Replay"

type TransactionHandler struct {
	svc *service.TransactionService
}

func NewTransactionHandler(svc *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// ProcessTransaction applies an operation. Business rejections are part of a
// 200 response body with status "failed".
func (h *TransactionHandler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.svc.ProcessTransaction(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "process transaction failed")
		return
	}

	if resp.Replayed {
		w.Header().Set(ReplayHeader, "true")
	}
	RespondJSON(w, http.StatusOK, resp)
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetTransaction(r.Context(), chi.URLParam(r, "referenceId"))
	if err != nil {
		respondServiceError(w, r, err, "get transaction failed")
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}
