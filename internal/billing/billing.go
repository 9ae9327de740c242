// Package billing derives invoice amounts and numbers.
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem is a single billable row on an invoice.
type LineItem struct {
	Description string `json:"description"`
	Quantity    Amount `json:"quantity"`
	UnitPrice   Amount `json:"unit_price"`
}

// Total is quantity times unit price, rounded to cents.
func (li LineItem) Total() Amount {
	return Amount{li.Quantity.Mul(li.UnitPrice.Decimal)}.Round2()
}

// Totals are the derived amounts stamped on an invoice.
type Totals struct {
	SubTotal  Amount
	TaxAmount Amount
	Total     Amount
}

// ComputeTotals sums the line items and applies taxRate (a percentage).
// Tax is computed from the already rounded subtotal.
func ComputeTotals(items []LineItem, taxRate Amount) Totals {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.Quantity.Mul(li.UnitPrice.Decimal))
	}
	sub := sum.Round(2)
	tax := sub.Mul(NormalizeTaxRate(taxRate).Decimal).Div(hundred).Round(2)

	return Totals{
		SubTotal:  Amount{sub},
		TaxAmount: Amount{tax},
		Total:     Amount{sub.Add(tax)},
	}
}

// Exceeded reports whether any amount is too large to be stored.
func (t Totals) Exceeded() bool {
	return t.Total.GreaterThan(MaxAmount)
}

// NormalizeTaxRate clamps negative rates to zero.
func NormalizeTaxRate(rate Amount) Amount {
	if rate.IsNegative() {
		return Amount{}
	}
	return rate
}

// FormatInvoiceNumber renders seq as INV-0001-24 using the two digit year of at.
func FormatInvoiceNumber(seq int64, at time.Time) string {
	return fmt.Sprintf("INV-%04d-%s", seq, at.Format("06"))
}
