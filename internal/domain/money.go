package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits every ledger amount carries.
const AmountScale = 2

var (
	MaxTransactionAmount = decimal.NewFromInt(10_000_000)
	MaxCreditLimit       = decimal.NewFromInt(10_000_000)
	MaxInitialBalance    = decimal.NewFromInt(1_000_000)
)

// DefaultCurrency is applied when a request omits the currency.
const DefaultCurrency = "BRL"

var supportedCurrencies = map[string]struct{}{
	"BRL": {},
	"USD": {},
	"EUR": {},
}

// Money represents a monetary value in a specific currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney creates a Money value, normalizing the currency code.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", FormatAmount(m.Amount), m.Currency)
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// HasValidScale reports whether d carries at most two fractional digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// IsValidTransactionAmount checks the (0, 10,000,000] range and the two-digit scale.
func IsValidTransactionAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(MaxTransactionAmount) && HasValidScale(d)
}

// IsSupportedCurrency reports whether code is one of the ledger currencies.
func IsSupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[strings.ToUpper(code)]
	return ok
}
