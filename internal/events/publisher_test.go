package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	calls    int
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func succeeded(accountID uuid.UUID, ref string) service.Event {
	return service.Event{
		Type:            service.EventTransactionSucceeded,
		OccurredAt:      time.Now().UTC(),
		TransactionID:   uuid.New(),
		AccountID:       accountID,
		ReferenceID:     ref,
		Operation:       domain.OperationDebit,
		Amount:          decimal.RequireFromString("10"),
		Currency:        "BRL",
		Balance:         decimal.RequireFromString("90"),
		ReservedBalance: decimal.Zero,
	}
}

func TestPublisherWritesTerminalEvents(t *testing.T) {
	writer := &fakeWriter{}
	p := NewPublisher(writer, 8)
	accountID := uuid.New()

	p.Observe(context.Background(), succeeded(accountID, "ref-1"))
	p.Observe(context.Background(), service.Event{Type: service.EventTransactionAttempted, AccountID: accountID})
	p.Observe(context.Background(), service.Event{
		Type:         service.EventTransactionFailed,
		AccountID:    accountID,
		ReferenceID:  "ref-2",
		Operation:    domain.OperationDebit,
		ErrorCode:    domain.CodeInsufficientBalance,
		ErrorMessage: "not enough",
	})
	require.NoError(t, p.Close())

	require.Len(t, writer.messages, 2)
	assert.True(t, writer.closed)

	var first TransactionEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &first))
	assert.Equal(t, accountID.String(), string(writer.messages[0].Key))
	assert.Equal(t, "transaction.succeeded", first.EventType)
	assert.Equal(t, "ref-1", first.ReferenceID)
	assert.Equal(t, "10.00", first.Amount)
	assert.Equal(t, "90.00", first.Balance)

	var second TransactionEvent
	require.NoError(t, json.Unmarshal(writer.messages[1].Value, &second))
	assert.Equal(t, "transaction.failed", second.EventType)
	assert.Equal(t, string(domain.CodeInsufficientBalance), second.ErrorCode)
}

func TestPublisherBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(writer, 8)

	for i := 0; i < 5; i++ {
		p.Observe(context.Background(), succeeded(uuid.New(), "ref"))
	}
	require.NoError(t, p.Close())

	// The breaker rejects without touching the writer once open.
	assert.Equal(t, tripAfterFailures, writer.calls)
}

func TestPublisherDropsAfterClose(t *testing.T) {
	writer := &fakeWriter{}
	p := NewPublisher(writer, 1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	p.Observe(context.Background(), succeeded(uuid.New(), "late"))
	assert.Empty(t, writer.messages)
}
