package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLockTimeout bounds how long a transaction waits for a row lock.
const DefaultLockTimeout = 5 * time.Second

// Store provides access to the ledger queries and transaction scoping.
type Store struct {
	db          *pgxpool.Pool
	queries     *Queries
	lockTimeout time.Duration
}

// NewStore creates a store wrapper around a pgx connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:          db,
		queries:     New(db),
		lockTimeout: DefaultLockTimeout,
	}
}

// WithLockTimeout changes the bounded row lock wait.
func (s *Store) WithLockTimeout(timeout time.Duration) *Store {
	if timeout > 0 {
		s.lockTimeout = timeout
	}
	return s
}

// Reader returns the non-transactional query set.
func (s *Store) Reader() domain.Reader {
	return s.queries
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.db.Ping(ctx))
}

// RunInTx executes fn within a READ COMMITTED transaction whose lock waits are
// capped by lock_timeout.
func (s *Store) RunInTx(ctx context.Context, fn func(uow domain.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", mapError(err))
	}

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}
