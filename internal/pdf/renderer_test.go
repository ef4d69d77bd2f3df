package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() InvoiceDocument {
	return InvoiceDocument{
		InvoiceNumber: "INV-20260201-001",
		IssueDate:     "2026-02-01",
		DueDate:       "2026-03-03",
		Status:        "draft",
		FromName:      "Jo Freelancer",
		FromEmail:     "jo@example.com",
		BillToName:    "Acme",
		BillToEmail:   "ap@acme.test",
		Items: []LineItem{
			{Description: "Design", Quantity: "2", UnitPrice: "50.00", Amount: "100.00"},
			{Description: "Hosting", Quantity: "1", UnitPrice: "25.50", Amount: "25.50"},
		},
		Total:          "USD 125.50",
		PaymentLinkURL: "https://buy.stripe.test/plink_1",
	}
}

func TestRenderInvoice_ProducesPDF(t *testing.T) {
	out, err := NewRenderer().RenderInvoice(context.Background(), sampleDocument())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "output should be a PDF")
}

func TestRenderInvoice_Errors(t *testing.T) {
	t.Run("missing number", func(t *testing.T) {
		doc := sampleDocument()
		doc.InvoiceNumber = ""
		_, err := NewRenderer().RenderInvoice(context.Background(), doc)
		assert.ErrorIs(t, err, ErrRender)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewRenderer().RenderInvoice(ctx, sampleDocument())
		assert.ErrorIs(t, err, ErrRender)
	})
}
