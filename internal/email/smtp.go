package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional - some servers allow unauthenticated relay
	Password string // optional
	From     string // default sender address
	FromName string // optional sender display name
}

// SMTPSender implements Sender using go-mail.
// TLS mode is chosen from the port: 465 implicit TLS, 587 mandatory
// STARTTLS, anything else opportunistic (Mailpit, Mailhog on 1025).
type SMTPSender struct {
	config SMTPConfig
	logger zerolog.Logger
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTP sender from a config struct.
func NewSMTPSender(config SMTPConfig, logger zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		config: config,
		logger: logger.With().Str("component", "smtp").Logger(),
	}
}

// buildMessage creates the go-mail message for email.
func (s *SMTPSender) buildMessage(email *Email) (*mail.Msg, error) {
	if len(email.To) == 0 {
		return nil, ErrNoRecipients
	}

	msg := mail.NewMsg()

	if email.From != "" {
		if err := msg.From(email.From); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFromAddress, err)
		}
	} else if s.config.FromName != "" {
		if err := msg.FromFormat(s.config.FromName, s.config.From); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFromAddress, err)
		}
	} else if err := msg.From(s.config.From); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFromAddress, err)
	}

	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToAddress, err)
	}

	msg.Subject(email.Subject)
	msg.SetMessageID()
	msg.SetDate()

	// Prefer HTML with text fallback, or just text
	switch {
	case email.HTMLBody != "" && email.TextBody != "":
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	case email.HTMLBody != "":
		msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	default:
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	}

	for key, value := range email.Headers {
		msg.SetGenHeader(mail.Header(key), value)
	}
	return msg, nil
}

// Send sends an email via SMTP.
func (s *SMTPSender) Send(ctx context.Context, email *Email) (string, error) {
	msg, err := s.buildMessage(email)
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions(30*time.Second)...)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error().Err(err).Strs("to", email.To).Str("host", s.config.Host).Msg("failed to send email")
		return "", ErrDelivery("smtp", err)
	}

	messageID := msg.GetMessageID()
	s.logger.Info().Strs("to", email.To).Str("message_id", messageID).Msg("email sent")
	return messageID, nil
}

func (s *SMTPSender) clientOptions(timeout time.Duration) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(timeout),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}

// Ping verifies SMTP connectivity and authentication without sending email.
func (s *SMTPSender) Ping(ctx context.Context) error {
	client, err := mail.NewClient(s.config.Host, s.clientOptions(10*time.Second)...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return client.Close()
}
