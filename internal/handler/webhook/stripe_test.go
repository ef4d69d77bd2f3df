package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ledgerly/internal/domain"
)

type stubReconciler struct {
	err       error
	payload   string
	signature string
	calls     int
}

func (s *stubReconciler) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	s.calls++
	s.payload = string(payload)
	s.signature = signature
	return s.err
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func TestStripeHandler_AcknowledgesAuthenticatedEvents(t *testing.T) {
	rec := &stubReconciler{}
	w := httptest.NewRecorder()
	NewStripeHandler(rec).HandleWebhook(w, webhookRequest(`{"id":"evt_1"}`, "t=1,v1=abc"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, `{"id":"evt_1"}`, rec.payload, "raw body must reach signature verification untouched")
	assert.Equal(t, "t=1,v1=abc", rec.signature)
}

func TestStripeHandler_BadSignatureIs401(t *testing.T) {
	rec := &stubReconciler{err: domain.Unauthenticated("webhook.payment", "Invalid webhook signature")}
	w := httptest.NewRecorder()
	NewStripeHandler(rec).HandleWebhook(w, webhookRequest(`{}`, "t=1,v1=forged"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), domain.EUNAUTHENTICATED)
}

func TestStripeHandler_MissingSignature(t *testing.T) {
	rec := &stubReconciler{}
	w := httptest.NewRecorder()
	NewStripeHandler(rec).HandleWebhook(w, webhookRequest(`{}`, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, rec.calls)
}

func TestStripeHandler_PayloadTooLarge(t *testing.T) {
	rec := &stubReconciler{}
	req := webhookRequest(strings.Repeat("x", 64), "t=1,v1=abc")
	w := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(w, req.Body, 16)

	NewStripeHandler(rec).HandleWebhook(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, rec.calls)
}
