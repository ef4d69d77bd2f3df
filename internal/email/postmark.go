package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const postmarkEndpoint = "https://api.postmarkapp.com/email"

// PostmarkSender implements the Sender interface using Postmark API
type PostmarkSender struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

var _ Sender = (*PostmarkSender)(nil)

type postmarkEmail struct {
	From     string           `json:"From"`
	To       string           `json:"To"`
	Subject  string           `json:"Subject"`
	HtmlBody string           `json:"HtmlBody,omitempty"`
	TextBody string           `json:"TextBody,omitempty"`
	Headers  []postmarkHeader `json:"Headers,omitempty"`
}

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type postmarkResponse struct {
	To        string `json:"To"`
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// NewPostmarkSender creates a new Postmark email sender. from is used when
// an email has no From of its own.
func NewPostmarkSender(apiKey, from string) *PostmarkSender {
	return &PostmarkSender{
		apiKey:   apiKey,
		from:     from,
		endpoint: postmarkEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Send sends an email via Postmark
func (p *PostmarkSender) Send(ctx context.Context, email *Email) (string, error) {
	if len(email.To) == 0 {
		return "", ErrNoRecipients
	}

	from := email.From
	if from == "" {
		from = p.from
	}
	payload := postmarkEmail{
		From:     from,
		To:       strings.Join(email.To, ","),
		Subject:  email.Subject,
		HtmlBody: email.HTMLBody,
		TextBody: email.TextBody,
	}
	for name, value := range email.Headers {
		payload.Headers = append(payload.Headers, postmarkHeader{Name: name, Value: value})
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", ErrDelivery("postmark", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result postmarkResponse
	if err := json.Unmarshal(body, &result); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.ErrorCode != 0 {
		return "", ErrDelivery("postmark",
			fmt.Errorf("status %d, error %d: %s", resp.StatusCode, result.ErrorCode, result.Message))
	}

	return result.MessageID, nil
}
