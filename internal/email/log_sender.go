package email

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSender writes emails to the log instead of delivering them. Used in
// development when no mail server is running.
type LogSender struct {
	logger zerolog.Logger
}

var _ Sender = LogSender{}

func NewLogSender(logger zerolog.Logger) LogSender {
	return LogSender{logger: logger.With().Str("component", "email").Logger()}
}

func (s LogSender) Send(ctx context.Context, email *Email) (string, error) {
	if len(email.To) == 0 {
		return "", ErrNoRecipients
	}
	id := "log-" + uuid.NewString()
	s.logger.Info().
		Str("message_id", id).
		Strs("to", email.To).
		Str("subject", email.Subject).
		Str("body", email.TextBody).
		Msg("email not delivered (log provider)")
	return id, nil
}
