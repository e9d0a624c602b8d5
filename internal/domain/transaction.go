package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var transactionTransitions = map[TransactionStatus]map[TransactionStatus]struct{}{
	TxStatusPending: {
		TxStatusSuccess: {},
		TxStatusFailed:  {},
	},
	TxStatusSuccess: {},
	TxStatusFailed:  {},
}

func canTransition(current, next TransactionStatus) bool {
	nextStates, ok := transactionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// Transaction is the durable record of one requested operation and its outcome.
// It is append-only apart from the single Pending -> Success|Failed transition.
type Transaction struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	ReferenceID          string
	Operation            Operation
	Amount               decimal.Decimal
	Currency             string
	Status               TransactionStatus
	Metadata             map[string]any
	ErrorCode            ErrorCode
	ErrorMessage         string
	BalanceAfter         decimal.Decimal
	ReservedBalanceAfter decimal.Decimal
	CreatedAt            time.Time
	ProcessedAt          *time.Time
}

// NewTransaction creates a pending transaction.
func NewTransaction(accountID uuid.UUID, referenceID string, op Operation, amount decimal.Decimal, currency string, metadata map[string]any, now time.Time) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		ReferenceID: referenceID,
		Operation:   op,
		Amount:      amount,
		Currency:    currency,
		Status:      TxStatusPending,
		Metadata:    metadata,
		CreatedAt:   now,
	}
}

func (t *Transaction) IsTerminal() bool {
	return t.Status == TxStatusSuccess || t.Status == TxStatusFailed
}

func (t *Transaction) transition(next TransactionStatus, now time.Time) error {
	if !canTransition(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	processed := now
	t.ProcessedAt = &processed
	return nil
}

// MarkAsSuccess clears any error and stamps the processing time.
func (t *Transaction) MarkAsSuccess(now time.Time) error {
	if err := t.transition(TxStatusSuccess, now); err != nil {
		return err
	}
	t.ErrorCode = ""
	t.ErrorMessage = ""
	return nil
}

// MarkAsFailed stores the failure reason and stamps the processing time.
func (t *Transaction) MarkAsFailed(code ErrorCode, reason string, now time.Time) error {
	if err := t.transition(TxStatusFailed, now); err != nil {
		return err
	}
	if len(reason) > MaxErrorMessageLength {
		reason = reason[:MaxErrorMessageLength]
	}
	t.ErrorCode = code
	t.ErrorMessage = reason
	return nil
}

// RecordBalances snapshots the account state the transaction left behind.
func (t *Transaction) RecordBalances(a Account) {
	t.BalanceAfter = a.Balance
	t.ReservedBalanceAfter = a.ReservedBalance
}

// ParseOperation accepts an operation name in any case.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}
