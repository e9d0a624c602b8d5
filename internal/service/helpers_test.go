package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/memstore"
	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	store    *memstore.Store
	events   *recordingObserver
	txs      *TransactionService
	accounts *AccountService
}

func newFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := memstore.New()
	events := &recordingObserver{}
	return &ledgerFixture{
		store:    store,
		events:   events,
		txs:      NewTransactionService(store, events),
		accounts: NewAccountService(store, events),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *ledgerFixture) seedClient(status domain.Status) domain.Client {
	client := domain.Client{ID: uuid.New(), Name: "client", Status: status, CreatedAt: time.Now().UTC()}
	f.store.Seed(client)
	return client
}

func (f *ledgerFixture) seedAccountFor(client domain.Client, balance, creditLimit string) domain.Account {
	acc := domain.Account{
		ID:              uuid.New(),
		ClientID:        client.ID,
		Balance:         dec(balance),
		ReservedBalance: decimal.Zero,
		CreditLimit:     dec(creditLimit),
		Status:          domain.StatusActive,
		CreatedAt:       time.Now().UTC(),
	}
	f.store.Seed(client, acc)
	return acc
}

func (f *ledgerFixture) seedAccount(balance, creditLimit string) domain.Account {
	return f.seedAccountFor(f.seedClient(domain.StatusActive), balance, creditLimit)
}

func (f *ledgerFixture) account(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func (f *ledgerFixture) process(t *testing.T, req models.ProcessTransactionRequest) *models.TransactionResponse {
	t.Helper()
	resp, err := f.txs.ProcessTransaction(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func request(op domain.Operation, accountID uuid.UUID, amount, ref string) models.ProcessTransactionRequest {
	return models.ProcessTransactionRequest{
		Operation:   string(op),
		AccountID:   accountID.String(),
		Amount:      dec(amount),
		Currency:    "BRL",
		ReferenceID: ref,
	}
}

func transferRequest(from, to uuid.UUID, amount, ref string) models.ProcessTransactionRequest {
	req := request(domain.OperationTransfer, from, amount, ref)
	req.Metadata = map[string]any{domain.MetadataDestinationAccountID: to.String()}
	return req
}

func reversalRequest(accountID uuid.UUID, amount, ref, originalRef string) models.ProcessTransactionRequest {
	req := request(domain.OperationReversal, accountID, amount, ref)
	req.Metadata = map[string]any{domain.MetadataOriginalReferenceID: originalRef}
	return req
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
