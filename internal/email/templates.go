package email

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// InvoiceEmail is the data shared by invoice emails.
type InvoiceEmail struct {
	ClientName     string
	FromName       string
	InvoiceNumber  string
	Total          string // formatted, e.g. "USD 125.50"
	DueDate        string
	PaymentLinkURL string
	PDFURL         string
}

// InvoiceSentEmail tells the client a new invoice is ready.
type InvoiceSentEmail struct {
	InvoiceEmail
}

func (e InvoiceSentEmail) Subject() string {
	return "Invoice " + e.InvoiceNumber + " from " + e.FromName
}

func (e InvoiceSentEmail) TemplateName() string {
	return "invoice_sent.html"
}

// InvoiceOverdueEmail reminds the client of an unpaid invoice past due.
type InvoiceOverdueEmail struct {
	InvoiceEmail
}

func (e InvoiceOverdueEmail) Subject() string {
	return "Reminder: invoice " + e.InvoiceNumber + " is overdue"
}

func (e InvoiceOverdueEmail) TemplateName() string {
	return "invoice_overdue.html"
}
