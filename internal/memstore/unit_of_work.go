package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
)

// lockTable hands out one single-slot channel per id.
type lockTable struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[uuid.UUID]chan struct{})}
}

func (l *lockTable) slot(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

func (l *lockTable) acquire(ctx context.Context, id uuid.UUID, timeout time.Duration) error {
	ch := l.slot(id)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s", domain.ErrLockTimeout, id)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", domain.ErrLockTimeout, id, ctx.Err())
	}
}

func (l *lockTable) release(id uuid.UUID) {
	<-l.slot(id)
}

type unitOfWork struct {
	store *Store
	held  map[uuid.UUID]struct{}

	clients      map[uuid.UUID]domain.Client
	accounts     map[uuid.UUID]domain.Account
	transactions map[uuid.UUID]domain.Transaction
	references   map[string]uuid.UUID
}

func newUnitOfWork(s *Store) *unitOfWork {
	return &unitOfWork{
		store:        s,
		held:         make(map[uuid.UUID]struct{}),
		clients:      make(map[uuid.UUID]domain.Client),
		accounts:     make(map[uuid.UUID]domain.Account),
		transactions: make(map[uuid.UUID]domain.Transaction),
		references:   make(map[string]uuid.UUID),
	}
}

func (u *unitOfWork) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := u.held[id]; ok {
		return nil
	}
	if err := u.store.locks.acquire(ctx, id, u.store.lockTimeout); err != nil {
		return err
	}
	u.held[id] = struct{}{}
	return nil
}

func (u *unitOfWork) unlock(id uuid.UUID) {
	if _, ok := u.held[id]; !ok {
		return
	}
	delete(u.held, id)
	u.store.locks.release(id)
}

func (u *unitOfWork) release() {
	for id := range u.held {
		u.unlock(id)
	}
}

func (u *unitOfWork) commit() error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, id := range u.references {
		if existing, ok := s.byReference[ref]; ok && existing != id {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, ref)
		}
	}
	for id, c := range u.clients {
		s.clients[id] = c
	}
	for id, acc := range u.accounts {
		s.accounts[id] = acc
	}
	for id, tx := range u.transactions {
		s.transactions[id] = tx
	}
	for ref, id := range u.references {
		s.byReference[ref] = id
	}
	return nil
}

func (u *unitOfWork) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if acc, ok := u.accounts[id]; ok {
		return &acc, nil
	}
	return u.store.GetAccount(ctx, id)
}

func (u *unitOfWork) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	if c, ok := u.clients[id]; ok {
		return &c, nil
	}
	return u.store.GetClient(ctx, id)
}

func (u *unitOfWork) GetTransactionByReferenceID(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	if id, ok := u.references[referenceID]; ok {
		tx := cloneTransaction(u.transactions[id])
		return &tx, nil
	}
	return u.store.GetTransactionByReferenceID(ctx, referenceID)
}

func (u *unitOfWork) HasSuccessfulTransaction(_ context.Context, accountID uuid.UUID) (bool, error) {
	return u.store.anyTransaction(u.transactions, func(tx domain.Transaction) bool {
		return tx.AccountID == accountID && tx.Status == domain.TxStatusSuccess
	}), nil
}

func (u *unitOfWork) HasSuccessfulReversal(_ context.Context, originalReferenceID string) (bool, error) {
	return u.store.anyTransaction(u.transactions, isReversalOf(originalReferenceID)), nil
}

func (u *unitOfWork) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return u.store.ListTransactions(ctx, accountID, limit, offset)
}

func (u *unitOfWork) CountAccountsByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	n, err := u.store.CountAccountsByClient(ctx, clientID)
	if err != nil {
		return 0, err
	}
	for id, acc := range u.accounts {
		if acc.ClientID != clientID {
			continue
		}
		if _, err := u.store.GetAccount(ctx, id); err != nil {
			n++
		}
	}
	return n, nil
}

func (u *unitOfWork) FindInvariantViolations(ctx context.Context) ([]domain.Account, error) {
	return u.store.FindInvariantViolations(ctx)
}

func (u *unitOfWork) CountPendingTransactions(ctx context.Context, createdBefore time.Time) (int64, error) {
	return u.store.CountPendingTransactions(ctx, createdBefore)
}

// GetAccountForUpdate locks the account for the rest of the unit of work. The
// account is read after the lock is granted so it reflects the latest commit.
func (u *unitOfWork) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if _, err := u.store.GetAccount(ctx, id); err != nil {
		if _, staged := u.accounts[id]; !staged {
			return nil, err
		}
	}
	if err := u.lock(ctx, id); err != nil {
		return nil, err
	}
	return u.GetAccount(ctx, id)
}

func (u *unitOfWork) GetClientForUpdate(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	if _, err := u.store.GetClient(ctx, id); err != nil {
		if _, staged := u.clients[id]; !staged {
			return nil, err
		}
	}
	if err := u.lock(ctx, id); err != nil {
		return nil, err
	}
	return u.GetClient(ctx, id)
}

func (u *unitOfWork) CreateClient(ctx context.Context, client *domain.Client) error {
	if _, err := u.GetClient(ctx, client.ID); err == nil {
		return fmt.Errorf("client %s already exists", client.ID)
	}
	if err := u.lock(ctx, client.ID); err != nil {
		return err
	}
	u.clients[client.ID] = *client
	return nil
}

func (u *unitOfWork) CreateAccount(ctx context.Context, account *domain.Account) error {
	if _, err := u.GetAccount(ctx, account.ID); err == nil {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	if err := u.lock(ctx, account.ID); err != nil {
		return err
	}
	u.accounts[account.ID] = *account
	return nil
}

func (u *unitOfWork) SaveAccount(_ context.Context, account *domain.Account) error {
	if _, ok := u.held[account.ID]; !ok {
		return fmt.Errorf("account %s saved without holding its lock", account.ID)
	}
	now := time.Now().UTC()
	account.UpdatedAt = &now
	u.accounts[account.ID] = *account
	return nil
}

func (u *unitOfWork) SaveClient(_ context.Context, client *domain.Client) error {
	if _, ok := u.held[client.ID]; !ok {
		return fmt.Errorf("client %s saved without holding its lock", client.ID)
	}
	now := time.Now().UTC()
	client.UpdatedAt = &now
	u.clients[client.ID] = *client
	return nil
}

func (u *unitOfWork) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if _, err := u.GetTransactionByReferenceID(ctx, tx.ReferenceID); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, tx.ReferenceID)
	}
	u.transactions[tx.ID] = cloneTransaction(*tx)
	u.references[tx.ReferenceID] = tx.ID
	return nil
}

func (u *unitOfWork) SaveTransaction(_ context.Context, tx *domain.Transaction) error {
	current, ok := u.transactions[tx.ID]
	if !ok {
		return fmt.Errorf("%w: transaction %s not created in this unit of work", domain.ErrTransactionNotFound, tx.ID)
	}
	if current.IsTerminal() {
		return fmt.Errorf("%w: transaction %s is already %s", domain.ErrInvalidTransition, tx.ID, current.Status)
	}
	u.transactions[tx.ID] = cloneTransaction(*tx)
	return nil
}
