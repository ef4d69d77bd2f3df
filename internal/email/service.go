package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateNames = []string{
	InvoiceSentEmail{}.TemplateName(),
	InvoiceOverdueEmail{}.TemplateName(),
}

// Service handles email composition and sending
type Service struct {
	sender    Sender
	from      string
	templates map[string]*template.Template
}

// NewService creates a new email service
func NewService(sender Sender, fromAddress, fromName string) (*Service, error) {
	templates := make(map[string]*template.Template, len(templateNames))
	for _, name := range templateNames {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}

	return &Service{
		sender:    sender,
		from:      from,
		templates: templates,
	}, nil
}

// Compose renders data for a single recipient without sending.
func (s *Service) Compose(to string, data EmailTemplate) (*Email, error) {
	htmlBody, textBody, err := s.renderTemplate(data)
	if err != nil {
		return nil, err
	}
	return &Email{
		To:       []string{to},
		From:     s.from,
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}, nil
}

// Deliver sends a composed email and returns the provider message id.
func (s *Service) Deliver(ctx context.Context, email *Email) (string, error) {
	id, err := s.sender.Send(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to send %q: %w", email.Subject, err)
	}
	return id, nil
}

// Helper method to render a template
func (s *Service) renderTemplate(data EmailTemplate) (string, string, error) {
	tmpl, ok := s.templates[data.TemplateName()]
	if !ok {
		return "", "", ErrTemplateNotFound(data.TemplateName())
	}

	var htmlBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&htmlBuf, "email_layout", data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", data.TemplateName(), err)
	}

	htmlBody := htmlBuf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
