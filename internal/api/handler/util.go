package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayo6706/ledger-engine/internal/api/problem"
	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/service"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	problem.Write(w, r, status, problemURL(problemType), http.StatusText(status), message)
}

func problemURL(problemType string) string {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		return problem.Type(problemType)
	}
	return problemType
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps service and domain errors onto problem responses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		problem.WriteDetails(w, r, problem.Details{
			Type:   problem.Type("request/validation-failed"),
			Status: http.StatusBadRequest,
			Detail: verr.Error(),
			Code:   string(domain.CodeValidationFailed),
			Errors: verr.Fields,
		})
		return
	}

	if rej, ok := domain.AsRejection(err); ok {
		problem.WriteDetails(w, r, problem.Details{
			Type:   problem.Type("ledger/rejected"),
			Status: http.StatusUnprocessableEntity,
			Detail: rej.Message,
			Code:   string(rej.Code),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		RespondError(w, r, http.StatusNotFound, "account/not-found", "account not found")
		return
	case errors.Is(err, domain.ErrClientNotFound):
		RespondError(w, r, http.StatusNotFound, "client/not-found", "client not found")
		return
	case errors.Is(err, domain.ErrTransactionNotFound):
		RespondError(w, r, http.StatusNotFound, "transaction/not-found", "transaction not found")
		return
	}

	if domain.IsRetryable(err) {
		zap.L().Warn(logMsg, zap.Error(err), zap.String("path", r.URL.Path))
		w.Header().Set("Retry-After", "1")
		problem.WriteDetails(w, r, problem.Details{
			Type:      problem.Type("ledger/temporarily-unavailable"),
			Status:    http.StatusServiceUnavailable,
			Detail:    "the ledger is temporarily unavailable, retry the request",
			Code:      string(domain.InfrastructureCode(err)),
			Retryable: true,
		})
		return
	}

	zap.L().Error(logMsg, zap.Error(err), zap.String("path", r.URL.Path))
	problem.WriteDetails(w, r, problem.Details{
		Type:   problem.Type("internal-server-error"),
		Status: http.StatusInternalServerError,
		Detail: "unexpected server error",
		Code:   string(domain.CodeInternal),
	})
}
