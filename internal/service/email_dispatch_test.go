package service

import (
	"context"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/jobs"
)

func emailJob(t *testing.T, jobType string, invoiceID uuid.UUID) *jobs.Job {
	t.Helper()
	payload, err := json.Marshal(jobs.InvoiceEmailPayload{InvoiceID: invoiceID})
	require.NoError(t, err)
	return &jobs.Job{ID: uuid.New(), JobType: jobType, Payload: payload}
}

func newDispatcher(f *fixture, mailer *fakeMailer) *EmailDispatcher {
	return NewEmailDispatcher(f.invoices, f.clients, f.accounts, f.emailLogs, mailer, f.clock, nil, zerolog.Nop())
}

func TestEmailDispatcher_InvoiceSentWritesLog(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	inv := f.sentInvoice(domain.InvoiceStatusSent, fixtureStart.AddDate(0, 0, 14))

	err := newDispatcher(f, mailer).HandleInvoiceSent(context.Background(), emailJob(t, jobs.JobTypeInvoiceSent, inv.ID))

	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"billing@acme.test"}, mailer.sent[0].To)
	assert.Equal(t, "Invoice "+inv.InvoiceNumber+" from Ada Lovelace", mailer.sent[0].Subject)

	require.Len(t, f.emailLogs.logs, 1)
	entry := f.emailLogs.logs[0]
	assert.Equal(t, domain.EmailLogSent, entry.Status)
	assert.Equal(t, f.owner.ID, entry.UserID)
	assert.Equal(t, "billing@acme.test", entry.Recipient)
	assert.Equal(t, inv.ID, *entry.RelatedInvoiceID)
	assert.Equal(t, bodyPreviewLength, utf8.RuneCountInString(entry.BodyPreview))
}

func TestEmailDispatcher_SendFailureLogsAndRetries(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{sendErr: errBoom}
	inv := f.sentInvoice(domain.InvoiceStatusSent, fixtureStart.AddDate(0, 0, 14))

	err := newDispatcher(f, mailer).HandleInvoiceSent(context.Background(), emailJob(t, jobs.JobTypeInvoiceSent, inv.ID))

	assert.ErrorIs(t, err, errBoom)
	require.Len(t, f.emailLogs.logs, 1)
	assert.Equal(t, domain.EmailLogFailed, f.emailLogs.logs[0].Status)
}

func TestEmailDispatcher_OverdueSkippedOncePaid(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	inv := f.sentInvoice(domain.InvoiceStatusPaid, fixtureStart.AddDate(0, 0, -1))

	err := newDispatcher(f, mailer).HandleInvoiceOverdue(context.Background(), emailJob(t, jobs.JobTypeInvoiceOverdue, inv.ID))

	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, f.emailLogs.logs)
}

func TestEmailDispatcher_OverdueReminder(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	inv := f.sentInvoice(domain.InvoiceStatusOverdue, fixtureStart.AddDate(0, 0, -1))

	err := newDispatcher(f, mailer).HandleInvoiceOverdue(context.Background(), emailJob(t, jobs.JobTypeInvoiceOverdue, inv.ID))

	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Reminder: invoice "+inv.InvoiceNumber+" is overdue", mailer.sent[0].Subject)
}

func TestEmailDispatcher_MissingRowsAreDropped(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	orphan := f.sentInvoice(domain.InvoiceStatusSent, fixtureStart)
	orphan.ClientID = uuid.New()
	f.invoices.put(orphan)
	d := newDispatcher(f, mailer)

	assert.NoError(t, d.HandleInvoiceSent(context.Background(), emailJob(t, jobs.JobTypeInvoiceSent, uuid.New())))
	assert.NoError(t, d.HandleInvoiceSent(context.Background(), emailJob(t, jobs.JobTypeInvoiceSent, orphan.ID)))
	assert.Empty(t, mailer.sent)
}

func TestEmailDispatcher_BadPayload(t *testing.T) {
	f := newFixture(t)

	err := newDispatcher(f, &fakeMailer{}).HandleInvoiceSent(context.Background(), &jobs.Job{Payload: json.RawMessage(`[`)})

	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("  short \n", 200))
	assert.Equal(t, "héllo", preview("héllo wörld", 5))
}
