package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader is the read-only view of the ledger. Lookups that miss return
// ErrAccountNotFound, ErrClientNotFound or ErrTransactionNotFound.
type Reader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetClient(ctx context.Context, id uuid.UUID) (*Client, error)
	GetTransactionByReferenceID(ctx context.Context, referenceID string) (*Transaction, error)
	HasSuccessfulTransaction(ctx context.Context, accountID uuid.UUID) (bool, error)
	HasSuccessfulReversal(ctx context.Context, originalReferenceID string) (bool, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, error)
	CountAccountsByClient(ctx context.Context, clientID uuid.UUID) (int, error)
	FindInvariantViolations(ctx context.Context) ([]Account, error)
	CountPendingTransactions(ctx context.Context, createdBefore time.Time) (int64, error)
}

// UnitOfWork is the atomic read-modify-write scope. Locks taken with the
// ForUpdate methods are held until the unit commits or rolls back, and a lock
// that cannot be acquired within the store's bounded wait fails with ErrLockTimeout.
type UnitOfWork interface {
	Reader
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	GetClientForUpdate(ctx context.Context, id uuid.UUID) (*Client, error)
	CreateClient(ctx context.Context, client *Client) error
	CreateAccount(ctx context.Context, account *Account) error
	SaveAccount(ctx context.Context, account *Account) error
	SaveClient(ctx context.Context, client *Client) error
	// CreateTransaction returns ErrDuplicateReference when the reference id is taken.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	SaveTransaction(ctx context.Context, tx *Transaction) error
}

// Store scopes units of work. RunInTx commits when fn returns nil and rolls
// back otherwise.
type Store interface {
	Reader() Reader
	RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
