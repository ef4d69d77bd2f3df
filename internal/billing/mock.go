package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates successful payment flows without calling Stripe API.
type MockProvider struct {
	// CreatePaymentLinkFunc allows customizing payment link creation behavior
	CreatePaymentLinkFunc func(ctx context.Context, params CreatePaymentLinkParams) (*PaymentLink, error)

	// ParseWebhookFunc allows customizing webhook parsing behavior
	ParseWebhookFunc func(payload []byte, signature string) (*WebhookEvent, error)

	// ValidSignature is accepted by the default ParseWebhook
	ValidSignature string

	// Links stores created payment links keyed by correlation key
	Links map[string]*PaymentLink

	mu sync.Mutex

	// CallLog tracks method calls for test assertions
	CallLog []string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ValidSignature: "valid_signature",
		Links:          make(map[string]*PaymentLink),
		CallLog:        []string{},
	}
}

func (m *MockProvider) log(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

// Calls returns how many logged calls start with prefix.
func (m *MockProvider) Calls(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.CallLog {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// CreatePaymentLink creates a mock payment link.
func (m *MockProvider) CreatePaymentLink(ctx context.Context, params CreatePaymentLinkParams) (*PaymentLink, error) {
	m.log(fmt.Sprintf("CreatePaymentLink(%s, %s %s)", params.CorrelationKey, params.Amount.StringFixed(2), params.Currency))

	if m.CreatePaymentLinkFunc != nil {
		return m.CreatePaymentLinkFunc(ctx, params)
	}
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// Default mock behavior: a fresh link per call
	id := "plink_" + uuid.New().String()
	link := &PaymentLink{ID: id, URL: "https://buy.stripe.test/" + id}

	m.mu.Lock()
	m.Links[params.CorrelationKey] = link
	m.mu.Unlock()
	return link, nil
}

// ParseWebhook decodes payload as a WebhookEvent. Only ValidSignature
// authenticates.
func (m *MockProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	m.log("ParseWebhook")

	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(payload, signature)
	}
	if signature != m.ValidSignature || len(payload) == 0 {
		return nil, ErrInvalidWebhookSignature
	}

	var ev WebhookEvent
	if err := decodeMockEvent(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
