package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store, balance string) domain.Account {
	t.Helper()
	client := domain.Client{ID: uuid.New(), Name: "client", Status: domain.StatusActive, CreatedAt: time.Now()}
	acc := domain.Account{
		ID:              uuid.New(),
		ClientID:        client.ID,
		Balance:         decimal.RequireFromString(balance),
		ReservedBalance: decimal.Zero,
		CreditLimit:     decimal.Zero,
		Status:          domain.StatusActive,
		CreatedAt:       time.Now(),
	}
	s.Seed(client, acc)
	return acc
}

func TestRunInTxCommitsStagedWrites(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "100.00")
	ctx := context.Background()

	err := s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		locked, err := uow.GetAccountForUpdate(ctx, acc.ID)
		require.NoError(t, err)
		locked.Balance = locked.Balance.Add(decimal.RequireFromString("5.00"))
		require.NoError(t, uow.SaveAccount(ctx, locked))

		committed, err := s.GetAccount(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "100.00", domain.FormatAmount(committed.Balance))
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "105.00", domain.FormatAmount(got.Balance))
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "100.00")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		locked, err := uow.GetAccountForUpdate(ctx, acc.ID)
		require.NoError(t, err)
		locked.Balance = decimal.Zero
		require.NoError(t, uow.SaveAccount(ctx, locked))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", domain.FormatAmount(got.Balance))

	// The lock was released by the rollback.
	require.NoError(t, s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		_, err := uow.GetAccountForUpdate(ctx, acc.ID)
		return err
	}))
}

func TestGetAccountForUpdateTimesOut(t *testing.T) {
	s := New().WithLockTimeout(50 * time.Millisecond)
	acc := seedAccount(t, s, "100.00")
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
			_, err := uow.GetAccountForUpdate(ctx, acc.ID)
			close(held)
			<-done
			return err
		})
	}()
	<-held

	err := s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		_, err := uow.GetAccountForUpdate(ctx, acc.ID)
		return err
	})
	close(done)
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.True(t, domain.IsRetryable(err))
}

func TestCancelledLockWaitIsRetryable(t *testing.T) {
	s := New().WithLockTimeout(5 * time.Second)
	acc := seedAccount(t, s, "100.00")

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTx(context.Background(), func(uow domain.UnitOfWork) error {
			_, err := uow.GetAccountForUpdate(context.Background(), acc.ID)
			close(held)
			<-done
			return err
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	err := s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		_, err := uow.GetAccountForUpdate(ctx, acc.ID)
		return err
	})

	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, domain.CodeLockTimeout, domain.InfrastructureCode(err))
}

func TestGetAccountForUpdateNotFound(t *testing.T) {
	s := New()
	err := s.RunInTx(context.Background(), func(uow domain.UnitOfWork) error {
		_, err := uow.GetAccountForUpdate(context.Background(), uuid.New())
		return err
	})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSaveAccountRequiresLock(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "1.00")
	err := s.RunInTx(context.Background(), func(uow domain.UnitOfWork) error {
		return uow.SaveAccount(context.Background(), &acc)
	})
	require.Error(t, err)
}

func TestSameAccountAccessIsSerialized(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "0.00")
	ctx := context.Background()
	one := decimal.RequireFromString("1.00")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
				locked, err := uow.GetAccountForUpdate(ctx, acc.ID)
				if err != nil {
					return err
				}
				locked.Balance = locked.Balance.Add(one)
				return uow.SaveAccount(ctx, locked)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", domain.FormatAmount(got.Balance))
}

func TestCreateTransactionRejectsDuplicateReference(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "10.00")
	ctx := context.Background()

	create := func() error {
		return s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
			tx := domain.NewTransaction(acc.ID, "dup-ref", domain.OperationCredit, decimal.RequireFromString("1.00"), "BRL", nil, time.Now())
			if err := uow.CreateTransaction(ctx, tx); err != nil {
				return err
			}
			if err := tx.MarkAsSuccess(time.Now()); err != nil {
				return err
			}
			return uow.SaveTransaction(ctx, tx)
		})
	}

	require.NoError(t, create())
	require.ErrorIs(t, create(), domain.ErrDuplicateReference)
	assert.Equal(t, 1, s.TransactionCount("dup-ref"))
}

func TestListTransactionsNewestFirst(t *testing.T) {
	s := New()
	acc := seedAccount(t, s, "10.00")
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, ref := range []string{"a", "b", "c"} {
		createdAt := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.RunInTx(ctx, func(uow domain.UnitOfWork) error {
			tx := domain.NewTransaction(acc.ID, ref, domain.OperationCredit, decimal.RequireFromString("1.00"), "BRL", nil, createdAt)
			return uow.CreateTransaction(ctx, tx)
		}))
	}

	page, err := s.ListTransactions(ctx, acc.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ReferenceID)
	assert.Equal(t, "b", page[1].ReferenceID)

	rest, err := s.ListTransactions(ctx, acc.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a", rest[0].ReferenceID)
}
