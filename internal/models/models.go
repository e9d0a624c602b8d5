package models

import (
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcessTransactionRequest is the inbound operation request.
type ProcessTransactionRequest struct {
	Operation   string          `json:"operation" validate:"required,operation"`
	AccountID   string          `json:"account_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount" validate:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,currency"`
	ReferenceID string          `json:"reference_id" validate:"required,max=100,reference"`
	Metadata    map[string]any  `json:"metadata,omitempty" validate:"metadata"`
}

// TransactionResponse is the outcome of a processed (or replayed) transaction.
// Amounts are rendered with two fractional digits.
type TransactionResponse struct {
	TransactionID    uuid.UUID `json:"transaction_id"`
	ReferenceID      string    `json:"reference_id"`
	AccountID        uuid.UUID `json:"account_id"`
	Operation        string    `json:"operation"`
	Status           string    `json:"status"`
	Balance          string    `json:"balance"`
	ReservedBalance  string    `json:"reserved_balance"`
	AvailableBalance string    `json:"available_balance"`
	Timestamp        time.Time `json:"timestamp"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Replayed         bool      `json:"-"`
}

// NewTransactionResponse renders a terminal transaction and its balance snapshot.
func NewTransactionResponse(tx *domain.Transaction) *TransactionResponse {
	timestamp := tx.CreatedAt
	if tx.ProcessedAt != nil {
		timestamp = *tx.ProcessedAt
	}
	return &TransactionResponse{
		TransactionID:    tx.ID,
		ReferenceID:      tx.ReferenceID,
		AccountID:        tx.AccountID,
		Operation:        string(tx.Operation),
		Status:           string(tx.Status),
		Balance:          domain.FormatAmount(tx.BalanceAfter),
		ReservedBalance:  domain.FormatAmount(tx.ReservedBalanceAfter),
		AvailableBalance: domain.FormatAmount(tx.BalanceAfter.Sub(tx.ReservedBalanceAfter)),
		Timestamp:        timestamp.UTC(),
		ErrorCode:        string(tx.ErrorCode),
		ErrorMessage:     tx.ErrorMessage,
	}
}

type CreateAccountRequest struct {
	ClientID       string          `json:"client_id" validate:"required,uuid"`
	ClientName     string          `json:"client_name" validate:"omitempty,max=200"`
	ClientEmail    string          `json:"client_email" validate:"omitempty,email,max=200"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
}

type AccountResponse struct {
	AccountID        uuid.UUID  `json:"account_id"`
	ClientID         uuid.UUID  `json:"client_id"`
	Balance          string     `json:"balance"`
	ReservedBalance  string     `json:"reserved_balance"`
	AvailableBalance string     `json:"available_balance"`
	CreditLimit      string     `json:"credit_limit"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func NewAccountResponse(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		AccountID:        a.ID,
		ClientID:         a.ClientID,
		Balance:          domain.FormatAmount(a.Balance),
		ReservedBalance:  domain.FormatAmount(a.ReservedBalance),
		AvailableBalance: domain.FormatAmount(a.AvailableBalance()),
		CreditLimit:      domain.FormatAmount(a.CreditLimit),
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt,
	}
}

// TransactionRecord is a statement line.
type TransactionRecord struct {
	ID           uuid.UUID      `json:"id"`
	ReferenceID  string         `json:"reference_id"`
	Operation    string         `json:"operation"`
	Amount       string         `json:"amount"`
	Currency     string         `json:"currency"`
	Status       string         `json:"status"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
}

func NewTransactionRecord(tx domain.Transaction) TransactionRecord {
	return TransactionRecord{
		ID:           tx.ID,
		ReferenceID:  tx.ReferenceID,
		Operation:    string(tx.Operation),
		Amount:       domain.FormatAmount(tx.Amount),
		Currency:     tx.Currency,
		Status:       string(tx.Status),
		ErrorCode:    string(tx.ErrorCode),
		ErrorMessage: tx.ErrorMessage,
		Metadata:     tx.Metadata,
		CreatedAt:    tx.CreatedAt.UTC(),
		ProcessedAt:  tx.ProcessedAt,
	}
}

type StatementResponse struct {
	AccountID    uuid.UUID           `json:"account_id"`
	Page         int                 `json:"page"`
	PageSize     int                 `json:"page_size"`
	Transactions []TransactionRecord `json:"transactions"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive blocked"`
}

type ClientResponse struct {
	ClientID  uuid.UUID  `json:"client_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func NewClientResponse(c *domain.Client) *ClientResponse {
	return &ClientResponse{
		ClientID:  c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt,
	}
}

// ValidationResponse exposes a read-only validation gate verdict.
type ValidationResponse struct {
	Valid        bool   `json:"valid"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
