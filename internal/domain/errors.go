package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable failure identifier returned to callers.
type ErrorCode string

const (
	CodeAccountNotFound              ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeAccountInactive              ErrorCode = "ACCOUNT_INACTIVE"
	CodeClientInactive               ErrorCode = "CLIENT_INACTIVE"
	CodeInsufficientBalance          ErrorCode = "INSUFFICIENT_BALANCE"
	CodeInsufficientAvailableBalance ErrorCode = "INSUFFICIENT_AVAILABLE_BALANCE"
	CodeCreditLimitExceeded          ErrorCode = "CREDIT_LIMIT_EXCEEDED"
	CodeInsufficientReservedBalance  ErrorCode = "INSUFFICIENT_RESERVED_BALANCE"
	CodeNoTransactionsToReverse      ErrorCode = "NO_TRANSACTIONS_TO_REVERSE"

	CodeInvalidMetadata                ErrorCode = "INVALID_METADATA"
	CodeSameAccountTransfer            ErrorCode = "SAME_ACCOUNT_TRANSFER"
	CodeDestinationAccountNotFound     ErrorCode = "DESTINATION_ACCOUNT_NOT_FOUND"
	CodeDestinationAccountInactive     ErrorCode = "DESTINATION_ACCOUNT_INACTIVE"
	CodeDestinationClientInactive      ErrorCode = "DESTINATION_CLIENT_INACTIVE"
	CodeOriginalTransactionNotFound    ErrorCode = "ORIGINAL_TRANSACTION_NOT_FOUND"
	CodeOriginalTransactionMismatch    ErrorCode = "ORIGINAL_TRANSACTION_ACCOUNT_MISMATCH"
	CodeOriginalTransactionUnsuccesful ErrorCode = "ORIGINAL_TRANSACTION_NOT_SUCCESSFUL"
	CodeReversalAmountMismatch         ErrorCode = "REVERSAL_AMOUNT_MISMATCH"
	CodeCannotReverseReversal          ErrorCode = "CANNOT_REVERSE_REVERSAL"
	CodeAlreadyReversed                ErrorCode = "ALREADY_REVERSED"
	CodeUnsupportedOperation           ErrorCode = "UNSUPPORTED_OPERATION"

	CodeInvalidCreditLimit      ErrorCode = "INVALID_CREDIT_LIMIT"
	CodeInvalidInitialBalance   ErrorCode = "INVALID_INITIAL_BALANCE"
	CodeInitialBalanceOverLimit ErrorCode = "INITIAL_BALANCE_EXCEEDS_CREDIT_LIMIT"
	CodeAccountLimitReached     ErrorCode = "ACCOUNT_LIMIT_REACHED"
	CodeInvalidStatus           ErrorCode = "INVALID_STATUS"

	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeLockTimeout      ErrorCode = "LOCK_TIMEOUT"
	CodeConflict         ErrorCode = "CONCURRENCY_CONFLICT"
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("reference id already exists")
	ErrInvalidTransition   = errors.New("invalid transaction state transition")

	// Retryable infrastructure failures. The unit of work is rolled back and
	// nothing is persisted, so callers may retry with the same reference id.
	ErrLockTimeout         = errors.New("timed out waiting for account lock")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// RejectionError is a business-rule violation. It finalizes a transaction as
// failed and is never retried automatically.
type RejectionError struct {
	Code    ErrorCode
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Reject builds a RejectionError with a formatted message.
func Reject(code ErrorCode, format string, args ...any) *RejectionError {
	return &RejectionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a RejectionError from err's chain.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsRetryable reports whether err is an infrastructure failure that is safe to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// InfrastructureCode classifies an infrastructure failure for responses and metrics.
func InfrastructureCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeLockTimeout
	case errors.Is(err, ErrConcurrencyConflict):
		return CodeConflict
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}
