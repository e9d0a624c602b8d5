package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, client_id, balance, reserved_balance, credit_limit, status, created_at, updated_at`

const clientColumns = `id, name, email, status, created_at, updated_at`

const transactionColumns = `id, account_id, reference_id, operation, amount, currency, status, metadata,
	error_code, error_message, balance_after, reserved_balance_after, created_at, processed_at`

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a      domain.Account
		status string
	)
	if err := row.Scan(&a.ID, &a.ClientID, &a.Balance, &a.ReservedBalance, &a.CreditLimit, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = domain.Status(status)
	return &a, nil
}

func scanClient(row rowScanner) (*domain.Client, error) {
	var (
		c      domain.Client
		status string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = domain.Status(status)
	return &c, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx           domain.Transaction
		operation    string
		status       string
		errorCode    *string
		errorMessage *string
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.ReferenceID, &operation, &tx.Amount, &tx.Currency, &status, &tx.Metadata,
		&errorCode, &errorMessage, &tx.BalanceAfter, &tx.ReservedBalanceAfter, &tx.CreatedAt, &tx.ProcessedAt)
	if err != nil {
		return nil, err
	}
	tx.Operation = domain.Operation(operation)
	tx.Status = domain.TransactionStatus(status)
	if errorCode != nil {
		tx.ErrorCode = domain.ErrorCode(*errorCode)
	}
	if errorMessage != nil {
		tx.ErrorMessage = *errorMessage
	}
	return &tx, nil
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return mapError(err)
}

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return acc, nil
}

// GetAccountForUpdate takes the account row lock. Waiting is bounded by the
// transaction's lock_timeout.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return acc, nil
}

func (q *Queries) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	c, err := scanClient(q.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrClientNotFound)
	}
	return c, nil
}

func (q *Queries) GetClientForUpdate(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	c, err := scanClient(q.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrClientNotFound)
	}
	return c, nil
}

func (q *Queries) GetTransactionByReferenceID(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	tx, err := scanTransaction(q.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference_id = $1`, referenceID))
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return tx, nil
}

func (q *Queries) HasSuccessfulTransaction(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE account_id = $1 AND status = 'success')`,
		accountID).Scan(&ok)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (q *Queries) HasSuccessfulReversal(ctx context.Context, originalReferenceID string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE operation = 'reversal'
			  AND status = 'success'
			  AND btrim(metadata->>'original_reference_id') = $1
		)`, originalReferenceID).Scan(&ok)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (q *Queries) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", mapError(err))
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return txs, nil
}

func (q *Queries) CountAccountsByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	var n int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE client_id = $1`, clientID).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (q *Queries) FindInvariantViolations(ctx context.Context) ([]domain.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE reserved_balance < 0 OR reserved_balance > balance + credit_limit
	`)
	if err != nil {
		return nil, fmt.Errorf("find invariant violations: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *acc)
	}
	return out, mapError(rows.Err())
}

func (q *Queries) CountPendingTransactions(ctx context.Context, createdBefore time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE status = 'pending' AND created_at < $1`,
		createdBefore).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (q *Queries) CreateClient(ctx context.Context, client *domain.Client) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO clients (id, name, email, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		client.ID, client.Name, client.Email, string(client.Status), client.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert client: %w", mapError(err))
	}
	return nil
}

func (q *Queries) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (id, client_id, balance, reserved_balance, credit_limit, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.ClientID, account.Balance, account.ReservedBalance, account.CreditLimit,
		string(account.Status), account.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", mapError(err))
	}
	return nil
}

func (q *Queries) SaveAccount(ctx context.Context, account *domain.Account) error {
	err := q.db.QueryRow(ctx, `
		UPDATE accounts
		SET balance = $2, reserved_balance = $3, credit_limit = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, account.ID, account.Balance, account.ReservedBalance, account.CreditLimit, string(account.Status)).
		Scan(&account.UpdatedAt)
	if err != nil {
		return notFound(err, domain.ErrAccountNotFound)
	}
	return nil
}

func (q *Queries) SaveClient(ctx context.Context, client *domain.Client) error {
	err := q.db.QueryRow(ctx, `
		UPDATE clients SET name = $2, email = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, client.ID, client.Name, client.Email, string(client.Status)).Scan(&client.UpdatedAt)
	if err != nil {
		return notFound(err, domain.ErrClientNotFound)
	}
	return nil
}

// CreateTransaction inserts the pending row. The unique reference id
// constraint turns a concurrent duplicate into ErrDuplicateReference.
func (q *Queries) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	var metadata any
	if len(tx.Metadata) > 0 {
		metadata = tx.Metadata
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO transactions (id, account_id, reference_id, operation, amount, currency, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.AccountID, tx.ReferenceID, string(tx.Operation), tx.Amount, tx.Currency, string(tx.Status), metadata, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", mapError(err))
	}
	return nil
}

// SaveTransaction finalizes a pending row. Terminal rows are never rewritten.
func (q *Queries) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	var errorCode, errorMessage *string
	if tx.ErrorCode != "" {
		code := string(tx.ErrorCode)
		errorCode = &code
		errorMessage = &tx.ErrorMessage
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE transactions
		SET status = $2, error_code = $3, error_message = $4, balance_after = $5,
		    reserved_balance_after = $6, processed_at = $7
		WHERE id = $1 AND status = 'pending'
	`, tx.ID, string(tx.Status), errorCode, errorMessage, tx.BalanceAfter, tx.ReservedBalanceAfter, tx.ProcessedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s is not pending", domain.ErrInvalidTransition, tx.ID)
	}
	return nil
}
