package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
)

// operation is the working set a handler sees: the pending transaction and
// copies of every account locked for it. Handlers mutate the copies and mark
// them touched; the orchestrator persists touched accounts only on success.
type operation struct {
	uow      domain.UnitOfWork
	tx       *domain.Transaction
	meta     domain.OperationMetadata
	original *domain.Transaction
	accounts map[uuid.UUID]*domain.Account
	touched  []*domain.Account
}

func (op *operation) source() *domain.Account {
	return op.accounts[op.tx.AccountID]
}

func (op *operation) touch(accounts ...*domain.Account) {
	op.touched = append(op.touched, accounts...)
}

// operationHandler applies one operation. It returns a *domain.RejectionError
// for business-rule failures and any other error for infrastructure failures.
// Every check runs before the first mutation.
type operationHandler func(ctx context.Context, op *operation) error

var operationHandlers = map[domain.Operation]operationHandler{
	domain.OperationCredit:   applyCredit,
	domain.OperationDebit:    applyDebit,
	domain.OperationReserve:  applyReserve,
	domain.OperationCapture:  applyCapture,
	domain.OperationTransfer: applyTransfer,
	domain.OperationReversal: applyReversal,
}

func applyCredit(_ context.Context, op *operation) error {
	acc := op.source()
	acc.Balance = acc.Balance.Add(op.tx.Amount)
	op.touch(acc)
	return nil
}

func applyDebit(_ context.Context, op *operation) error {
	acc := op.source()
	if err := requireDebit(acc, op.tx); err != nil {
		return err
	}
	acc.Balance = acc.Balance.Sub(op.tx.Amount)
	op.touch(acc)
	return nil
}

func applyReserve(_ context.Context, op *operation) error {
	acc := op.source()
	if !acc.CanReserve(op.tx.Amount) {
		return domain.Reject(domain.CodeInsufficientAvailableBalance,
			"insufficient available balance: available %s, requested %s",
			domain.FormatAmount(acc.AvailableBalance()), domain.FormatAmount(op.tx.Amount))
	}
	acc.ReservedBalance = acc.ReservedBalance.Add(op.tx.Amount)
	op.touch(acc)
	return nil
}

func applyCapture(_ context.Context, op *operation) error {
	acc := op.source()
	if err := requireReserved(acc, op.tx); err != nil {
		return err
	}
	acc.ReservedBalance = acc.ReservedBalance.Sub(op.tx.Amount)
	acc.Balance = acc.Balance.Sub(op.tx.Amount)
	op.touch(acc)
	return nil
}

func applyTransfer(ctx context.Context, op *operation) error {
	meta, ok := op.meta.(domain.TransferMetadata)
	if !ok {
		return domain.Reject(domain.CodeInvalidMetadata, "transfer requires metadata %s", domain.MetadataDestinationAccountID)
	}
	src := op.source()
	if meta.DestinationAccountID == src.ID {
		return domain.Reject(domain.CodeSameAccountTransfer, "cannot transfer to the same account")
	}
	if err := requireDebit(src, op.tx); err != nil {
		return err
	}
	dst, err := activeCounterparty(ctx, op, meta.DestinationAccountID)
	if err != nil {
		return err
	}

	src.Balance = src.Balance.Sub(op.tx.Amount)
	dst.Balance = dst.Balance.Add(op.tx.Amount)
	op.touch(src, dst)
	return nil
}

// applyReversal inverts the original transaction's effect. The inverse is
// derived from the original operation, never from the reversal itself.
func applyReversal(ctx context.Context, op *operation) error {
	meta, ok := op.meta.(domain.ReversalMetadata)
	if !ok {
		return domain.Reject(domain.CodeInvalidMetadata, "reversal requires metadata %s", domain.MetadataOriginalReferenceID)
	}
	original := op.original
	switch {
	case original == nil:
		return domain.Reject(domain.CodeOriginalTransactionNotFound, "original transaction %s not found", meta.OriginalReferenceID)
	case original.AccountID != op.tx.AccountID:
		return domain.Reject(domain.CodeOriginalTransactionMismatch, "original transaction %s belongs to another account", original.ReferenceID)
	case original.Operation == domain.OperationReversal:
		return domain.Reject(domain.CodeCannotReverseReversal, "transaction %s is itself a reversal", original.ReferenceID)
	case original.Status != domain.TxStatusSuccess:
		return domain.Reject(domain.CodeOriginalTransactionUnsuccesful, "original transaction %s is %s", original.ReferenceID, original.Status)
	case !original.Amount.Equal(op.tx.Amount):
		return domain.Reject(domain.CodeReversalAmountMismatch, "reversal amount %s does not match original amount %s",
			domain.FormatAmount(op.tx.Amount), domain.FormatAmount(original.Amount))
	}

	reversed, err := op.uow.HasSuccessfulReversal(ctx, original.ReferenceID)
	if err != nil {
		return fmt.Errorf("check existing reversal: %w", err)
	}
	if reversed {
		return domain.Reject(domain.CodeAlreadyReversed, "transaction %s already reversed", original.ReferenceID)
	}

	acc := op.source()
	amount := op.tx.Amount
	switch original.Operation {
	case domain.OperationCredit:
		if err := requireDebit(acc, op.tx); err != nil {
			return err
		}
		acc.Balance = acc.Balance.Sub(amount)
		op.touch(acc)
	case domain.OperationDebit:
		acc.Balance = acc.Balance.Add(amount)
		op.touch(acc)
	case domain.OperationReserve:
		if err := requireReserved(acc, op.tx); err != nil {
			return err
		}
		acc.ReservedBalance = acc.ReservedBalance.Sub(amount)
		op.touch(acc)
	case domain.OperationCapture:
		acc.ReservedBalance = acc.ReservedBalance.Add(amount)
		acc.Balance = acc.Balance.Add(amount)
		op.touch(acc)
	case domain.OperationTransfer:
		return reverseTransfer(ctx, op, acc)
	default:
		return domain.Reject(domain.CodeUnsupportedOperation, "cannot reverse %s", original.Operation)
	}
	return nil
}

// reverseTransfer moves the funds back from the original destination, which is
// locked alongside the source.
func reverseTransfer(ctx context.Context, op *operation, src *domain.Account) error {
	meta, err := domain.DecodeMetadata(domain.OperationTransfer, op.original.Metadata)
	if err != nil {
		return err
	}
	dst, err := activeCounterparty(ctx, op, meta.(domain.TransferMetadata).DestinationAccountID)
	if err != nil {
		return err
	}
	if !dst.CanDebit(op.tx.Amount) {
		return domain.Reject(domain.CodeInsufficientBalance,
			"destination account %s has insufficient balance to return %s",
			dst.ID, domain.FormatAmount(op.tx.Amount))
	}

	dst.Balance = dst.Balance.Sub(op.tx.Amount)
	src.Balance = src.Balance.Add(op.tx.Amount)
	op.touch(src, dst)
	return nil
}

// activeCounterparty returns the locked second account of a two-account
// operation after checking it and its client are active.
func activeCounterparty(ctx context.Context, op *operation, id uuid.UUID) (*domain.Account, error) {
	dst, ok := op.accounts[id]
	if !ok {
		return nil, domain.Reject(domain.CodeDestinationAccountNotFound, "destination account %s not found", id)
	}
	if !dst.IsActive() {
		return nil, domain.Reject(domain.CodeDestinationAccountInactive, "destination account %s is %s", id, dst.Status)
	}
	client, err := op.uow.GetClient(ctx, dst.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return nil, domain.Reject(domain.CodeDestinationClientInactive, "destination client %s not found", dst.ClientID)
		}
		return nil, fmt.Errorf("get destination client: %w", err)
	}
	if !client.IsActive() {
		return nil, domain.Reject(domain.CodeDestinationClientInactive, "destination client %s is %s", client.ID, client.Status)
	}
	return dst, nil
}

func requireDebit(acc *domain.Account, tx *domain.Transaction) error {
	if acc.CanDebit(tx.Amount) {
		return nil
	}
	return domain.Reject(domain.CodeInsufficientBalance,
		"insufficient balance: total available %s, requested %s",
		domain.FormatAmount(acc.TotalAvailableBalance()), domain.FormatAmount(tx.Amount))
}

func requireReserved(acc *domain.Account, tx *domain.Transaction) error {
	if acc.CanCapture(tx.Amount) {
		return nil
	}
	return domain.Reject(domain.CodeInsufficientReservedBalance,
		"insufficient reserved balance: reserved %s, requested %s",
		domain.FormatAmount(acc.ReservedBalance), domain.FormatAmount(tx.Amount))
}
