package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeClosureTotalsDebtFormula(t *testing.T) {
	testCases := []struct {
		name         string
		expected     string
		paid         string
		expectedDebt string
		hasDebt      bool
	}{
		{name: "partial_payment", expected: "50000", paid: "30000", expectedDebt: "20000", hasDebt: true},
		{name: "exact_payment", expected: "50000", paid: "50000", expectedDebt: "0", hasDebt: false},
		{name: "overpayment_clamps_to_zero", expected: "50000", paid: "60000", expectedDebt: "0", hasDebt: false},
		{name: "nothing_paid", expected: "50000", paid: "0", expectedDebt: "50000", hasDebt: true},
		{name: "cent_precision", expected: "100.10", paid: "100.00", expectedDebt: "0.10", hasDebt: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := computeClosureTotals(nil, d(tc.expected), d(tc.paid))
			require.NoError(t, err)
			assert.True(t, totals.DebtAmount.Equal(d(tc.expectedDebt)),
				"debt = %s, want %s", totals.DebtAmount, tc.expectedDebt)
			assert.Equal(t, tc.hasDebt, totals.HasDebt)
		})
	}
}

func TestComputeClosureTotalsSparePartsCost(t *testing.T) {
	parts := []SparePartInput{
		{Name: "compressor valve", Quantity: 2, UnitPrice: d("1000")},
		{Name: "filter", Quantity: 1, UnitPrice: d("500")},
	}
	totals, err := computeClosureTotals(parts, d("50000"), d("50000"))
	require.NoError(t, err)
	assert.True(t, totals.SparePartsCost.Equal(d("2500")), "cost = %s", totals.SparePartsCost)
}

func TestComputeClosureTotalsNoBinaryFloatDrift(t *testing.T) {
	// 0.1 + 0.2 style amounts must sum exactly.
	parts := []SparePartInput{
		{Name: "washer", Quantity: 3, UnitPrice: d("0.10")},
		{Name: "seal", Quantity: 1, UnitPrice: d("0.20")},
	}
	totals, err := computeClosureTotals(parts, d("1"), d("0.50"))
	require.NoError(t, err)
	assert.True(t, totals.SparePartsCost.Equal(d("0.50")), "cost = %s", totals.SparePartsCost)
	assert.True(t, totals.DebtAmount.Equal(d("0.50")), "debt = %s", totals.DebtAmount)
}

func TestComputeClosureTotalsRejectsMalformedLineItems(t *testing.T) {
	testCases := []struct {
		name string
		part SparePartInput
	}{
		{name: "zero_quantity", part: SparePartInput{Name: "x", Quantity: 0, UnitPrice: d("10")}},
		{name: "negative_quantity", part: SparePartInput{Name: "x", Quantity: -1, UnitPrice: d("10")}},
		{name: "negative_price", part: SparePartInput{Name: "x", Quantity: 1, UnitPrice: d("-10")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := computeClosureTotals([]SparePartInput{tc.part}, d("100"), d("100"))
			assert.ErrorIs(t, err, ErrInvalidLineItem)
		})
	}
}

func TestLineTotal(t *testing.T) {
	total := lineTotal(SparePartInput{Quantity: 4, UnitPrice: d("12.25")})
	assert.True(t, total.Equal(d("49")), "total = %s", total)
}
