package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionMarkAsSuccess(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tx := NewTransaction(uuid.New(), "ref-1", OperationCredit, dec("10.00"), "BRL", nil, now)
	tx.ErrorMessage = "stale"

	require.NoError(t, tx.MarkAsSuccess(now))
	assert.Equal(t, TxStatusSuccess, tx.Status)
	assert.Empty(t, tx.ErrorMessage)
	require.NotNil(t, tx.ProcessedAt)
	assert.Equal(t, now, *tx.ProcessedAt)
	assert.True(t, tx.IsTerminal())
}

func TestTransactionMarkAsFailed(t *testing.T) {
	tx := NewTransaction(uuid.New(), "ref-2", OperationDebit, dec("10.00"), "BRL", nil, time.Now())

	require.NoError(t, tx.MarkAsFailed(CodeInsufficientBalance, strings.Repeat("x", 600), time.Now()))
	assert.Equal(t, TxStatusFailed, tx.Status)
	assert.Equal(t, CodeInsufficientBalance, tx.ErrorCode)
	assert.Len(t, tx.ErrorMessage, MaxErrorMessageLength)
}

func TestTransactionTerminalStatesAreFinal(t *testing.T) {
	tx := NewTransaction(uuid.New(), "ref-3", OperationDebit, dec("10.00"), "BRL", nil, time.Now())
	require.NoError(t, tx.MarkAsFailed(CodeInsufficientBalance, "no funds", time.Now()))

	err := tx.MarkAsSuccess(time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, TxStatusFailed, tx.Status)

	err = tx.MarkAsFailed(CodeInternal, "again", time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "no funds", tx.ErrorMessage)
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("Transfer")
	require.NoError(t, err)
	assert.Equal(t, OperationTransfer, op)

	_, err = ParseOperation("refund")
	require.Error(t, err)
}
