package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationResult is the gate's accept/reject verdict.
type ValidationResult struct {
	Valid        bool
	ErrorMessage string
	ErrorCode    domain.ErrorCode
}

func validationSuccess() ValidationResult {
	return ValidationResult{Valid: true}
}

func validationFailure(code domain.ErrorCode, format string, args ...any) ValidationResult {
	return ValidationResult{ErrorCode: code, ErrorMessage: fmt.Sprintf(format, args...)}
}

// ValidationGate performs read-only pre-mutation checks. Its verdict is
// advisory: handlers re-check funds under the account lock.
type ValidationGate struct {
	reader domain.Reader
}

func NewValidationGate(reader domain.Reader) *ValidationGate {
	return &ValidationGate{reader: reader}
}

// Validate runs the checks in order and stops at the first failure. The error
// return is reserved for infrastructure failures.
func (g *ValidationGate) Validate(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, op domain.Operation) (ValidationResult, error) {
	account, err := g.reader.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return validationFailure(domain.CodeAccountNotFound, "account %s not found", accountID), nil
		}
		return ValidationResult{}, fmt.Errorf("validate account: %w", err)
	}
	if !account.IsActive() {
		return validationFailure(domain.CodeAccountInactive, "account %s is %s", accountID, account.Status), nil
	}

	client, err := g.reader.GetClient(ctx, account.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return validationFailure(domain.CodeClientInactive, "client %s not found", account.ClientID), nil
		}
		return ValidationResult{}, fmt.Errorf("validate client: %w", err)
	}
	if !client.IsActive() {
		return validationFailure(domain.CodeClientInactive, "client %s is %s", client.ID, client.Status), nil
	}

	switch op {
	case domain.OperationDebit, domain.OperationTransfer:
		if !account.CanDebit(amount) {
			return insufficientBalance(*account, amount), nil
		}
	case domain.OperationReserve:
		if !account.CanReserve(amount) {
			return validationFailure(domain.CodeInsufficientAvailableBalance,
				"insufficient available balance: available %s, requested %s",
				domain.FormatAmount(account.AvailableBalance()), domain.FormatAmount(amount)), nil
		}
	case domain.OperationCredit:
		if account.Balance.Add(amount).GreaterThan(account.CreditLimit) {
			return validationFailure(domain.CodeCreditLimitExceeded,
				"credit of %s would exceed credit limit %s",
				domain.FormatAmount(amount), domain.FormatAmount(account.CreditLimit)), nil
		}
	case domain.OperationCapture:
		if !account.CanCapture(amount) {
			return validationFailure(domain.CodeInsufficientReservedBalance,
				"insufficient reserved balance: reserved %s, requested %s",
				domain.FormatAmount(account.ReservedBalance), domain.FormatAmount(amount)), nil
		}
	case domain.OperationReversal:
		ok, err := g.reader.HasSuccessfulTransaction(ctx, accountID)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("validate reversal history: %w", err)
		}
		if !ok {
			return validationFailure(domain.CodeNoTransactionsToReverse, "account %s has no transactions to reverse", accountID), nil
		}
	}

	return validationSuccess(), nil
}

func insufficientBalance(account domain.Account, amount decimal.Decimal) ValidationResult {
	return validationFailure(domain.CodeInsufficientBalance,
		"insufficient balance: total available %s, requested %s",
		domain.FormatAmount(account.TotalAvailableBalance()), domain.FormatAmount(amount))
}
