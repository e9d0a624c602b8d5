package service

import (
	"context"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventType names a point in the transaction or account lifecycle.
type EventType string

const (
	EventTransactionAttempted EventType = "transaction.attempted"
	EventTransactionSucceeded EventType = "transaction.succeeded"
	EventTransactionFailed    EventType = "transaction.failed"
	EventTransactionReplayed  EventType = "transaction.replayed"
	EventTransactionAborted   EventType = "transaction.aborted"
	EventRequestRejected      EventType = "request.rejected"
	EventAccountCreated       EventType = "account.created"
	EventAccountStatusChanged EventType = "account.status_changed"
	EventClientStatusChanged  EventType = "client.status_changed"
)

// Event describes something the ledger did. Fields that do not apply to the
// event type are left zero.
type Event struct {
	Type            EventType
	OccurredAt      time.Time
	TransactionID   uuid.UUID
	AccountID       uuid.UUID
	ClientID        uuid.UUID
	ReferenceID     string
	Operation       domain.Operation
	Amount          decimal.Decimal
	Currency        string
	Balance         decimal.Decimal
	ReservedBalance decimal.Decimal
	ErrorCode       domain.ErrorCode
	ErrorMessage    string
	PreviousStatus  string
	NewStatus       string
	Duration        time.Duration
	Err             error
}

// Observer receives ledger events. Implementations must not block; a failing
// observer never changes a transaction outcome.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// Observers fans an event out to every observer, isolating panics.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, e Event) {
	for _, obs := range o {
		if obs == nil {
			continue
		}
		notify(ctx, obs, e)
	}
}

func notify(ctx context.Context, obs Observer, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("observer panicked", zap.Any("panic", rec), zap.String("event", string(e.Type)))
		}
	}()
	obs.Observe(ctx, e)
}

func transactionEvent(t EventType, tx *domain.Transaction) Event {
	return Event{
		Type:            t,
		OccurredAt:      time.Now().UTC(),
		TransactionID:   tx.ID,
		AccountID:       tx.AccountID,
		ReferenceID:     tx.ReferenceID,
		Operation:       tx.Operation,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Balance:         tx.BalanceAfter,
		ReservedBalance: tx.ReservedBalanceAfter,
		ErrorCode:       tx.ErrorCode,
		ErrorMessage:    tx.ErrorMessage,
	}
}
