package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client owns accounts. A client that is not active freezes all of its accounts.
type Client struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func (c Client) IsActive() bool {
	return c.Status == StatusActive
}

// Account is the balance aggregate. Its predicates are pure; callers apply
// deltas to the fields directly while holding the account lock.
type Account struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	Balance         decimal.Decimal
	ReservedBalance decimal.Decimal
	CreditLimit     decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// AvailableBalance is balance minus reserved funds.
func (a Account) AvailableBalance() decimal.Decimal {
	return a.Balance.Sub(a.ReservedBalance)
}

// TotalAvailableBalance is the available balance plus the credit limit; the ceiling for debits.
func (a Account) TotalAvailableBalance() decimal.Decimal {
	return a.AvailableBalance().Add(a.CreditLimit)
}

func (a Account) CanDebit(amount decimal.Decimal) bool {
	return a.TotalAvailableBalance().GreaterThanOrEqual(amount)
}

func (a Account) CanReserve(amount decimal.Decimal) bool {
	return a.AvailableBalance().GreaterThanOrEqual(amount)
}

func (a Account) CanCapture(amount decimal.Decimal) bool {
	return a.ReservedBalance.GreaterThanOrEqual(amount)
}

func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

// InvariantsHold reports whether reserved funds are non-negative and covered by
// balance plus credit.
func (a Account) InvariantsHold() bool {
	return !a.ReservedBalance.IsNegative() &&
		a.ReservedBalance.LessThanOrEqual(a.Balance.Add(a.CreditLimit))
}

// ParseStatus accepts active, inactive or blocked in any case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive, StatusBlocked:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}
