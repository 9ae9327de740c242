// Package invoicepdf lays out an invoice as a PDF document.
package invoicepdf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"invoice-service/internal/billing"
	"invoice-service/internal/model"
)

const dateLayout = "02 Jan 2006"

// Renderer turns invoices into PDF bytes.
type Renderer struct {
	// CurrencySymbol prefixes every amount. The built-in fonts only cover
	// latin-1, so symbols like the rupee sign render as blanks.
	CurrencySymbol string
}

func NewRenderer(currencySymbol string) *Renderer {
	return &Renderer{CurrencySymbol: currencySymbol}
}

// Render produces the complete document or an error, never partial output.
func (r *Renderer) Render(inv *model.Invoice) (out []byte, err error) {
	if inv == nil {
		return nil, errors.New("render invoice: nil invoice")
	}

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("render invoice %s: %v", inv.InvoiceNumber, p)
		}
	}()

	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	r.addHeader(m, inv)
	r.addBillTo(m, inv)
	r.addItems(m, inv)
	r.addTotals(m, inv)
	r.addNotes(m, inv)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return doc.GetBytes(), nil
}

func (r *Renderer) money(a billing.Amount) string {
	if r.CurrencySymbol == "" {
		return a.Format()
	}
	return r.CurrencySymbol + " " + a.Format()
}

func (r *Renderer) addHeader(m core.Maroto, inv *model.Invoice) {
	m.AddRow(14,
		col.New(6).Add(
			text.New("INVOICE", props.Text{Size: 22, Style: fontstyle.Bold, Align: align.Left}),
		),
		col.New(6).Add(
			text.New(inv.CompanyName, props.Text{Size: 13, Style: fontstyle.Bold, Align: align.Right}),
		),
	)

	company := nonEmpty(inv.CompanyAddress, inv.CompanyEmail, inv.CompanyPhone)
	if len(company) > 0 {
		m.AddRow(float64(5*len(company)),
			col.New(12).Add(
				text.New(strings.Join(company, "\n"), props.Text{Size: 9, Align: align.Right}),
			),
		)
	}

	meta := []string{
		"Invoice #: " + inv.InvoiceNumber,
		"Issue Date: " + inv.IssueDate.Format(dateLayout),
	}
	if inv.DueDate != nil {
		meta = append(meta, "Due Date: "+inv.DueDate.Format(dateLayout))
	}
	m.AddRow(float64(5*len(meta)+4),
		col.New(12).Add(
			text.New(strings.Join(meta, "\n"), props.Text{Size: 10, Top: 4}),
		),
	)
	m.AddRow(6, line.NewCol(12))
}

func (r *Renderer) addBillTo(m core.Maroto, inv *model.Invoice) {
	client := append([]string{inv.ClientName}, nonEmpty(inv.ClientAddress, inv.ClientEmail)...)

	m.AddRow(7, col.New(12).Add(
		text.New("Bill To:", props.Text{Size: 11, Style: fontstyle.Bold}),
	))
	m.AddRow(float64(5*len(client)+2), col.New(12).Add(
		text.New(strings.Join(client, "\n"), props.Text{Size: 10}),
	))
	for _, v := range inv.TemplateData {
		m.AddRow(5, col.New(12).Add(
			text.New(v.Key+": "+v.Value, props.Text{Size: 9}),
		))
	}
	m.AddRow(6, line.NewCol(12))
}

func (r *Renderer) addItems(m core.Maroto, inv *model.Invoice) {
	header := props.Text{Size: 10, Style: fontstyle.Bold}
	right := header
	right.Align = align.Right

	m.AddRow(8,
		col.New(6).Add(text.New("Description", header)),
		col.New(2).Add(text.New("Qty", right)),
		col.New(2).Add(text.New("Unit Price", right)),
		col.New(2).Add(text.New("Total", right)),
	)
	m.AddRow(2, line.NewCol(12))

	cell := props.Text{Size: 9}
	num := props.Text{Size: 9, Align: align.Right}
	for _, li := range inv.LineItems {
		m.AddRow(7,
			col.New(6).Add(text.New(li.Description, cell)),
			col.New(2).Add(text.New(li.Quantity.String(), num)),
			col.New(2).Add(text.New(r.money(li.UnitPrice), num)),
			col.New(2).Add(text.New(r.money(li.Total()), num)),
		)
	}
	m.AddRow(4, line.NewCol(12))
}

func (r *Renderer) addTotals(m core.Maroto, inv *model.Invoice) {
	label := props.Text{Size: 10, Align: align.Right}
	value := props.Text{Size: 10, Align: align.Right}

	m.AddRow(6,
		col.New(8),
		col.New(2).Add(text.New("Subtotal:", label)),
		col.New(2).Add(text.New(r.money(inv.SubTotal), value)),
	)
	m.AddRow(6,
		col.New(8),
		col.New(2).Add(text.New(fmt.Sprintf("Tax (%s%%):", inv.TaxRate.String()), label)),
		col.New(2).Add(text.New(r.money(inv.TaxAmount), value)),
	)

	bold := props.Text{Size: 13, Style: fontstyle.Bold, Align: align.Right, Top: 2}
	m.AddRow(10,
		col.New(6),
		col.New(3).Add(text.New("Total Amount:", bold)),
		col.New(3).Add(text.New(r.money(inv.Total), bold)),
	)
}

func (r *Renderer) addNotes(m core.Maroto, inv *model.Invoice) {
	if strings.TrimSpace(inv.Notes) == "" {
		return
	}
	m.AddRow(6, line.NewCol(12))
	m.AddRow(7, col.New(12).Add(
		text.New("Notes:", props.Text{Size: 11, Style: fontstyle.Bold}),
	))
	m.AddRow(20, col.New(12).Add(
		text.New(inv.Notes, props.Text{Size: 9}),
	))
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
