package billing

import (
	"encoding/json"
	"fmt"
)

// mockEvent is the JSON shape MockProvider.ParseWebhook accepts.
type mockEvent struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	PaymentSucceeded bool   `json:"payment_succeeded"`
	InvoiceID        string `json:"invoice_id"`
	PaymentReference string `json:"payment_reference"`
}

func decodeMockEvent(payload []byte, out *WebhookEvent) error {
	var ev mockEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	*out = WebhookEvent(ev)
	return nil
}

// MockEventPayload renders ev in the shape MockProvider.ParseWebhook reads.
func MockEventPayload(ev WebhookEvent) []byte {
	b, _ := json.Marshal(mockEvent(ev))
	return b
}
