// Package memstore is an in-memory ledger store. Units of work stage their
// writes and apply them atomically on commit; per-id locks serialize access to
// the same account or client exactly like row locks in a relational store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
)

// DefaultLockTimeout bounds how long a unit of work waits for a lock.
const DefaultLockTimeout = 5 * time.Second

type Store struct {
	mu           sync.RWMutex
	clients      map[uuid.UUID]domain.Client
	accounts     map[uuid.UUID]domain.Account
	transactions map[uuid.UUID]domain.Transaction
	byReference  map[string]uuid.UUID

	locks       *lockTable
	lockTimeout time.Duration
}

func New() *Store {
	return &Store{
		clients:      make(map[uuid.UUID]domain.Client),
		accounts:     make(map[uuid.UUID]domain.Account),
		transactions: make(map[uuid.UUID]domain.Transaction),
		byReference:  make(map[string]uuid.UUID),
		locks:        newLockTable(),
		lockTimeout:  DefaultLockTimeout,
	}
}

// WithLockTimeout changes the bounded lock wait.
func (s *Store) WithLockTimeout(timeout time.Duration) *Store {
	if timeout > 0 {
		s.lockTimeout = timeout
	}
	return s
}

// Reader returns the committed, read-only view.
func (s *Store) Reader() domain.Reader {
	return s
}

// RunInTx executes fn within a unit of work.
func (s *Store) RunInTx(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	u := newUnitOfWork(s)
	defer u.release()

	if err := fn(u); err != nil {
		return err
	}
	if err := u.commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Seed stores a client and accounts directly, bypassing creation rules.
func (s *Store) Seed(client domain.Client, accounts ...domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
	for _, acc := range accounts {
		s.accounts[acc.ID] = acc
	}
}

// TransactionCount returns the number of committed transactions for a reference id.
func (s *Store) TransactionCount(referenceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, tx := range s.transactions {
		if tx.ReferenceID == referenceID {
			n++
		}
	}
	return n
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (s *Store) GetClient(_ context.Context, id uuid.UUID) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	return &c, nil
}

func (s *Store) GetTransactionByReferenceID(_ context.Context, referenceID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byReference[referenceID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	tx := cloneTransaction(s.transactions[id])
	return &tx, nil
}

func (s *Store) HasSuccessfulTransaction(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return s.anyTransaction(nil, func(tx domain.Transaction) bool {
		return tx.AccountID == accountID && tx.Status == domain.TxStatusSuccess
	}), nil
}

func (s *Store) HasSuccessfulReversal(_ context.Context, originalReferenceID string) (bool, error) {
	return s.anyTransaction(nil, isReversalOf(originalReferenceID)), nil
}

func (s *Store) ListTransactions(_ context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	s.mu.RLock()
	var out []domain.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			out = append(out, cloneTransaction(tx))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []domain.Transaction{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountAccountsByClient(_ context.Context, clientID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, acc := range s.accounts {
		if acc.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindInvariantViolations(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Account
	for _, acc := range s.accounts {
		if !acc.InvariantsHold() {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (s *Store) CountPendingTransactions(_ context.Context, createdBefore time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, tx := range s.transactions {
		if tx.Status == domain.TxStatusPending && tx.CreatedAt.Before(createdBefore) {
			n++
		}
	}
	return n, nil
}

// anyTransaction scans committed transactions, letting staged ones override.
func (s *Store) anyTransaction(staged map[uuid.UUID]domain.Transaction, match func(domain.Transaction) bool) bool {
	for _, tx := range staged {
		if match(tx) {
			return true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, tx := range s.transactions {
		if _, overridden := staged[id]; overridden {
			continue
		}
		if match(tx) {
			return true
		}
	}
	return false
}

func isReversalOf(originalReferenceID string) func(domain.Transaction) bool {
	return func(tx domain.Transaction) bool {
		if tx.Operation != domain.OperationReversal || tx.Status != domain.TxStatusSuccess {
			return false
		}
		ref, _ := tx.Metadata[domain.MetadataOriginalReferenceID].(string)
		return strings.TrimSpace(ref) == originalReferenceID
	}
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	if tx.Metadata != nil {
		metadata := make(map[string]any, len(tx.Metadata))
		for k, v := range tx.Metadata {
			metadata[k] = v
		}
		tx.Metadata = metadata
	}
	if tx.ProcessedAt != nil {
		processed := *tx.ProcessedAt
		tx.ProcessedAt = &processed
	}
	return tx
}
