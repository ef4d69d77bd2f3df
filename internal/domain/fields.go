package domain

import (
	"sort"
	"strings"
)

// FieldSet is an explicit allow-list of JSON field names an update may touch.
type FieldSet map[string]struct{}

// NewFieldSet builds an allow-list from names.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		fs[n] = struct{}{}
	}
	return fs
}

// Mutable fields per entity. Status, totals, numbers and provider
// references are deliberately absent: only the state machine writes them.
var (
	InvoiceMutableFields = NewFieldSet("client_id", "project_id", "issue_date", "due_date", "currency", "notes", "items")
	ClientMutableFields  = NewFieldSet("name", "email", "phone", "address", "company", "tax_id", "notes")

	// InvoiceServerFields are written only by the server. Clients echo them
	// back from earlier responses; they are dropped, never applied.
	InvoiceServerFields = NewFieldSet("id", "user_id", "invoice_number", "status", "total_amount",
		"pdf_url", "payment_link_url", "payment_link_id", "payment_reference", "created_at", "updated_at")
)

// Contains reports whether name is in the set.
func (fs FieldSet) Contains(name string) bool {
	_, ok := fs[name]
	return ok
}

// Check rejects any key outside the set.
func (fs FieldSet) Check(op string, keys []string) error {
	var rejected []string
	for _, k := range keys {
		if _, ok := fs[k]; !ok {
			rejected = append(rejected, k)
		}
	}
	if len(rejected) == 0 {
		return nil
	}

	sort.Strings(rejected)
	ve := &ValidationError{Op: op}
	for _, k := range rejected {
		ve.Add(k, "field is not allowed")
	}
	return ve
}

// Names returns the allowed field names, sorted.
func (fs FieldSet) Names() string {
	names := make([]string, 0, len(fs))
	for n := range fs {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
