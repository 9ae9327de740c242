package invoicepdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"invoice-service/internal/billing"
	"invoice-service/internal/model"
)

func sampleInvoice() *model.Invoice {
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []billing.LineItem{
		{Description: "A", Quantity: billing.NewAmount(2), UnitPrice: billing.NewAmount(10)},
		{Description: "B", Quantity: billing.NewAmount(1), UnitPrice: billing.NewAmount(5)},
	}
	totals := billing.ComputeTotals(items, billing.NewAmount(10))
	return &model.Invoice{
		InvoiceNumber:  "INV-0001-24",
		ClientName:     "Globex",
		ClientAddress:  "1 Main St",
		ClientEmail:    "ap@globex.test",
		CompanyName:    "Acme",
		CompanyAddress: "42 Side Rd",
		IssueDate:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        &due,
		LineItems:      items,
		TaxRate:        billing.NewAmount(10),
		SubTotal:       totals.SubTotal,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		Notes:          "Thanks for your business",
		TemplateData:   []model.TemplateValue{{Key: "PO", Value: "7781"}},
	}
}

func TestRender(t *testing.T) {
	out, err := NewRenderer("Rs.").Render(sampleInvoice())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderMinimal(t *testing.T) {
	inv := &model.Invoice{InvoiceNumber: "INV-0002-24", ClientName: "C", CompanyName: "Acme"}
	out, err := NewRenderer("").Render(inv)
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestRenderNil(t *testing.T) {
	out, err := NewRenderer("Rs.").Render(nil)
	require.Error(t, err)
	require.Nil(t, out)
}
