// Package pdf renders invoices to PDF with maroto.
package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ErrRender wraps every rendering failure.
var ErrRender = errors.New("pdf: render failed")

// Renderer turns an invoice document into PDF bytes.
type Renderer interface {
	RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}

// InvoiceDocument is the presentation model of one invoice. Amounts are
// pre-formatted by the caller.
type InvoiceDocument struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	Status        string

	FromName  string
	FromEmail string

	BillToName    string
	BillToCompany string
	BillToAddress string
	BillToEmail   string

	Items []LineItem
	Total string
	Notes string

	PaymentLinkURL string
}

type LineItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// MarotoRenderer implements Renderer.
type MarotoRenderer struct{}

var _ Renderer = MarotoRenderer{}

func NewRenderer() MarotoRenderer {
	return MarotoRenderer{}
}

func (MarotoRenderer) RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	if doc.InvoiceNumber == "" {
		return nil, fmt.Errorf("%w: invoice number is required", ErrRender)
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, doc.InvoiceNumber, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Date of issue: "+doc.IssueDate, props.Text{Top: 0}),
			text.New("Date due: "+doc.DueDate, props.Text{Top: 4}),
			text.New("Status: "+doc.Status, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New(doc.FromName, props.Text{Style: fontstyle.Bold}),
			text.New(doc.FromEmail, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(doc.BillToName, props.Text{Top: 5}),
			text.New(doc.BillToCompany, props.Text{Top: 9}),
			text.New(doc.BillToAddress, props.Text{Top: 13}),
			text.New(doc.BillToEmail, props.Text{Top: 17}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, "Amount due: "+doc.Total, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 9}
	headerRight := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(10,
		text.NewCol(6, "Description", header),
		text.NewCol(2, "Qty", headerRight),
		text.NewCol(2, "Unit price", headerRight),
		text.NewCol(2, "Amount", headerRight),
	)
	m.AddRow(2, line.NewCol(12))

	cell := props.Text{Size: 9}
	cellRight := props.Text{Size: 9, Align: align.Right}
	for _, item := range doc.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, cell),
			text.NewCol(2, item.Quantity, cellRight),
			text.NewCol(2, item.UnitPrice, cellRight),
			text.NewCol(2, item.Amount, cellRight),
		)
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, doc.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if doc.PaymentLinkURL != "" {
		m.AddRow(12,
			text.NewCol(12, "Pay online: "+doc.PaymentLinkURL, props.Text{Size: 9, Top: 4}),
		)
	}
	if doc.Notes != "" {
		m.AddRow(20,
			text.NewCol(12, doc.Notes, props.Text{Size: 9, Top: 4}),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out.GetBytes(), nil
}
