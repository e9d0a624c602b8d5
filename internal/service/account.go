package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AccountService manages clients and accounts outside the transaction path.
type AccountService struct {
	store       domain.Store
	validator   *RequestValidator
	observer    Observer
	maxAccounts int
	now         func() time.Time
}

func NewAccountService(store domain.Store, observer Observer) *AccountService {
	if observer == nil {
		observer = Observers(nil)
	}
	return &AccountService{
		store:       store,
		validator:   NewRequestValidator(),
		observer:    observer,
		maxAccounts: domain.DefaultMaxAccounts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithMaxAccounts caps how many accounts a single client may own.
func (s *AccountService) WithMaxAccounts(n int) *AccountService {
	if n > 0 {
		s.maxAccounts = n
	}
	return s
}

// CreateAccount opens an account, creating its client on first use.
func (s *AccountService) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (*domain.Account, error) {
	if err := s.validator.ValidateAccountRequest(req); err != nil {
		return nil, err
	}
	if err := checkOpeningBalances(req); err != nil {
		return nil, err
	}
	clientID, _ := uuid.Parse(req.ClientID)
	now := s.now()

	account := &domain.Account{
		ID:              uuid.New(),
		ClientID:        clientID,
		Balance:         req.InitialBalance.Round(domain.AmountScale),
		ReservedBalance: decimal.Zero,
		CreditLimit:     req.CreditLimit.Round(domain.AmountScale),
		Status:          domain.StatusActive,
		CreatedAt:       now,
	}

	err := s.store.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		client, err := uow.GetClientForUpdate(ctx, clientID)
		switch {
		case errors.Is(err, domain.ErrClientNotFound):
			client = &domain.Client{
				ID:        clientID,
				Name:      strings.TrimSpace(req.ClientName),
				Email:     strings.TrimSpace(req.ClientEmail),
				Status:    domain.StatusActive,
				CreatedAt: now,
			}
			if err := uow.CreateClient(ctx, client); err != nil {
				return fmt.Errorf("create client: %w", err)
			}
		case err != nil:
			return fmt.Errorf("lock client: %w", err)
		}

		if !client.IsActive() {
			return domain.Reject(domain.CodeClientInactive, "client %s is %s", client.ID, client.Status)
		}
		count, err := uow.CountAccountsByClient(ctx, clientID)
		if err != nil {
			return fmt.Errorf("count client accounts: %w", err)
		}
		if count >= s.maxAccounts {
			return domain.Reject(domain.CodeAccountLimitReached, "client %s already has %d accounts", clientID, count)
		}
		if err := uow.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observer.Observe(ctx, Event{
		Type:       EventAccountCreated,
		OccurredAt: now,
		AccountID:  account.ID,
		ClientID:   account.ClientID,
		Balance:    account.Balance,
		NewStatus:  string(account.Status),
	})
	return account, nil
}

func checkOpeningBalances(req models.CreateAccountRequest) error {
	switch {
	case req.CreditLimit.IsNegative() || req.CreditLimit.GreaterThan(domain.MaxCreditLimit) || !domain.HasValidScale(req.CreditLimit):
		return domain.Reject(domain.CodeInvalidCreditLimit, "credit limit must be between 0 and %s", domain.FormatAmount(domain.MaxCreditLimit))
	case req.InitialBalance.IsNegative() || req.InitialBalance.GreaterThan(domain.MaxInitialBalance) || !domain.HasValidScale(req.InitialBalance):
		return domain.Reject(domain.CodeInvalidInitialBalance, "initial balance must be between 0 and %s", domain.FormatAmount(domain.MaxInitialBalance))
	case req.InitialBalance.GreaterThan(req.CreditLimit):
		return domain.Reject(domain.CodeInitialBalanceOverLimit, "initial balance %s exceeds credit limit %s",
			domain.FormatAmount(req.InitialBalance), domain.FormatAmount(req.CreditLimit))
	}
	return nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := s.store.Reader().GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return acc, nil
}

func (s *AccountService) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	client, err := s.store.Reader().GetClient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", id, err)
	}
	return client, nil
}

// ListTransactions returns one page of the account statement, newest first.
func (s *AccountService) ListTransactions(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*models.StatementResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	reader := s.store.Reader()
	if _, err := reader.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}
	txs, err := reader.ListTransactions(ctx, accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	records := make([]models.TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, models.NewTransactionRecord(tx))
	}
	return &models.StatementResponse{
		AccountID:    accountID,
		Page:         page,
		PageSize:     pageSize,
		Transactions: records,
	}, nil
}

// SetAccountStatus changes an account's status under its lock.
func (s *AccountService) SetAccountStatus(ctx context.Context, id uuid.UUID, req models.UpdateStatusRequest) (*domain.Account, error) {
	status, err := s.validator.ParseStatus(req)
	if err != nil {
		return nil, err
	}

	var (
		updated  *domain.Account
		previous domain.Status
	)
	err = s.store.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		acc, err := uow.GetAccountForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock account %s: %w", id, err)
		}
		previous = acc.Status
		acc.Status = status
		if err := uow.SaveAccount(ctx, acc); err != nil {
			return fmt.Errorf("save account %s: %w", id, err)
		}
		updated = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observer.Observe(ctx, Event{
		Type:           EventAccountStatusChanged,
		OccurredAt:     s.now(),
		AccountID:      updated.ID,
		ClientID:       updated.ClientID,
		PreviousStatus: string(previous),
		NewStatus:      string(status),
	})
	return updated, nil
}

// SetClientStatus changes a client's status under its lock. A client that is
// not active freezes every account it owns.
func (s *AccountService) SetClientStatus(ctx context.Context, id uuid.UUID, req models.UpdateStatusRequest) (*domain.Client, error) {
	status, err := s.validator.ParseStatus(req)
	if err != nil {
		return nil, err
	}

	var (
		updated  *domain.Client
		previous domain.Status
	)
	err = s.store.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		client, err := uow.GetClientForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock client %s: %w", id, err)
		}
		previous = client.Status
		client.Status = status
		if err := uow.SaveClient(ctx, client); err != nil {
			return fmt.Errorf("save client %s: %w", id, err)
		}
		updated = client
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observer.Observe(ctx, Event{
		Type:           EventClientStatusChanged,
		OccurredAt:     s.now(),
		ClientID:       updated.ID,
		PreviousStatus: string(previous),
		NewStatus:      string(status),
	})
	return updated, nil
}
