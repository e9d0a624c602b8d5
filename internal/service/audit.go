package service

import (
	"context"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var auditActions = map[EventType]string{
	EventAccountCreated:       "ACCOUNT_CREATED",
	EventTransactionAttempted: "TRANSACTION_ATTEMPT",
	EventTransactionSucceeded: "TRANSACTION_SUCCESS",
	EventTransactionFailed:    "TRANSACTION_FAILURE",
	EventTransactionReplayed:  "TRANSACTION_REPLAY",
	EventTransactionAborted:   "TRANSACTION_ABORTED",
	EventRequestRejected:      "REQUEST_REJECTED",
	EventAccountStatusChanged: "ACCOUNT_STATUS_CHANGED",
	EventClientStatusChanged:  "CLIENT_STATUS_CHANGED",
}

// AuditLogger writes one structured "audit" line per ledger event.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger uses the global logger when logger is nil.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.L()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

func (a *AuditLogger) Observe(_ context.Context, e Event) {
	action, ok := auditActions[e.Type]
	if !ok {
		return
	}

	fields := []zap.Field{
		zap.String("action", action),
		zap.Time("occurred_at", e.OccurredAt),
	}
	if e.ReferenceID != "" {
		fields = append(fields,
			zap.String("reference_id", e.ReferenceID),
			zap.String("operation", string(e.Operation)),
			zap.String("amount", domain.FormatAmount(e.Amount)),
			zap.String("currency", e.Currency),
		)
	}
	if e.TransactionID != uuid.Nil {
		fields = append(fields, zap.String("transaction_id", e.TransactionID.String()))
	}
	if e.AccountID != uuid.Nil {
		fields = append(fields, zap.String("account_id", e.AccountID.String()))
	}
	if e.ClientID != uuid.Nil {
		fields = append(fields, zap.String("client_id", e.ClientID.String()))
	}
	if e.Type == EventTransactionSucceeded || e.Type == EventTransactionFailed {
		fields = append(fields,
			zap.String("balance", domain.FormatAmount(e.Balance)),
			zap.String("reserved_balance", domain.FormatAmount(e.ReservedBalance)),
		)
	}
	if e.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", string(e.ErrorCode)), zap.String("error_message", e.ErrorMessage))
	}
	if e.NewStatus != "" {
		fields = append(fields, zap.String("previous_status", e.PreviousStatus), zap.String("new_status", e.NewStatus))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("duration", e.Duration))
	}

	level := zapcore.InfoLevel
	switch e.Type {
	case EventTransactionFailed, EventRequestRejected:
		level = zapcore.WarnLevel
	case EventTransactionAborted:
		level = zapcore.ErrorLevel
		fields = append(fields, zap.Error(e.Err))
	}
	a.logger.Log(level, "audit", fields...)
}
