package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoney_String(t *testing.T) {
	m := NewMoney(decimal.RequireFromString("10.5"), "usd")
	assert.Equal(t, "10.50 USD", m.String())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1000.00", FormatAmount(decimal.NewFromInt(1000)))
	assert.Equal(t, "-500.00", FormatAmount(decimal.RequireFromString("-500")))
}

func TestIsValidTransactionAmount(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		valid  bool
	}{
		{name: "cents", amount: "0.01", valid: true},
		{name: "two decimals", amount: "150.25", valid: true},
		{name: "upper bound", amount: "10000000.00", valid: true},
		{name: "zero", amount: "0", valid: false},
		{name: "negative", amount: "-1.00", valid: false},
		{name: "above bound", amount: "10000000.01", valid: false},
		{name: "three decimals", amount: "1.005", valid: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, IsValidTransactionAmount(decimal.RequireFromString(tc.amount)))
		})
	}
}

func TestIsSupportedCurrency(t *testing.T) {
	assert.True(t, IsSupportedCurrency("BRL"))
	assert.True(t, IsSupportedCurrency("usd"))
	assert.False(t, IsSupportedCurrency("GBP"))
}
