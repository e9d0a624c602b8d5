package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAccountDerivedBalances(t *testing.T) {
	acc := Account{Balance: dec("1000.00"), ReservedBalance: dec("200.00"), CreditLimit: dec("500.00")}

	assert.Equal(t, "800.00", FormatAmount(acc.AvailableBalance()))
	assert.Equal(t, "1300.00", FormatAmount(acc.TotalAvailableBalance()))
}

func TestAccountPredicates(t *testing.T) {
	acc := Account{Balance: dec("100.00"), ReservedBalance: dec("40.00"), CreditLimit: dec("50.00")}

	cases := []struct {
		name   string
		check  func(decimal.Decimal) bool
		amount string
		want   bool
	}{
		{name: "debit within credit", check: acc.CanDebit, amount: "110.00", want: true},
		{name: "debit over credit", check: acc.CanDebit, amount: "110.01", want: false},
		{name: "reserve within available", check: acc.CanReserve, amount: "60.00", want: true},
		{name: "reserve ignores credit", check: acc.CanReserve, amount: "60.01", want: false},
		{name: "capture within reserved", check: acc.CanCapture, amount: "40.00", want: true},
		{name: "capture over reserved", check: acc.CanCapture, amount: "40.01", want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.check(dec(tc.amount)))
		})
	}
}

func TestAccountInvariantsHold(t *testing.T) {
	assert.True(t, Account{Balance: dec("-500.00"), CreditLimit: dec("500.00")}.InvariantsHold())
	assert.False(t, Account{Balance: dec("10.00"), ReservedBalance: dec("-1.00")}.InvariantsHold())
	assert.False(t, Account{Balance: dec("10.00"), ReservedBalance: dec("20.00"), CreditLimit: dec("5.00")}.InvariantsHold())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Blocked ")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, st)

	_, err = ParseStatus("closed")
	require.Error(t, err)
}
