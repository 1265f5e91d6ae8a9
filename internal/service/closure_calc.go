package service

import (
	"github.com/shopspring/decimal"
)

// SparePartInput is a caller-supplied line item. The total price is never
// taken from the caller; it is recomputed as Quantity × UnitPrice.
type SparePartInput struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Notes     string          `json:"notes"`
}

// ClosureTotals is the economic outcome of closing a service.
type ClosureTotals struct {
	SparePartsCost decimal.Decimal
	DebtAmount     decimal.Decimal
	HasDebt        bool
}

// computeClosureTotals derives the spare-parts cost and the remaining debt
// from the line items, the expected amount and the amount actually collected.
// Pure function; all arithmetic is exact decimal so currency totals carry no
// binary-float drift.
//
// debt = max(0, expected − paid). Overpayment yields zero debt, not credit.
func computeClosureTotals(parts []SparePartInput, expectedAmount, amountPaid decimal.Decimal) (ClosureTotals, error) {
	cost := decimal.Zero
	for _, p := range parts {
		if p.Quantity <= 0 || p.UnitPrice.IsNegative() {
			return ClosureTotals{}, ErrInvalidLineItem
		}
		cost = cost.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}

	debt := expectedAmount.Sub(amountPaid)
	if debt.IsNegative() {
		debt = decimal.Zero
	}

	return ClosureTotals{
		SparePartsCost: cost,
		DebtAmount:     debt,
		HasDebt:        debt.IsPositive(),
	}, nil
}

// lineTotal returns the server-side total for one line item.
func lineTotal(p SparePartInput) decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}
