// Package events fans notifications out to live subscribers over NATS.
// Publishing is best-effort: the notifications table stays the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// Publisher announces a stored notification.
type Publisher interface {
	PublishNotification(ctx context.Context, n *domain.Notification) error
}

// NotificationSubject is the subject a user's notifications are published on.
func NotificationSubject(prefix string, userID fmt.Stringer) string {
	if prefix == "" {
		prefix = "ledgerly"
	}
	return prefix + ".notifications." + userID.String()
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher implements Publisher on a NATS connection.
type NATSPublisher struct {
	nc     conn
	prefix string
}

var _ Publisher = (*NATSPublisher)(nil)

// Connect dials NATS with reconnects enabled.
func Connect(url, prefix string, logger zerolog.Logger) (*NATSPublisher, error) {
	log := logger.With().Str("component", "nats").Logger()
	nc, err := nats.Connect(url,
		nats.Name("ledgerly"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := p.nc.Publish(NotificationSubject(p.prefix, n.UserID), data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close drains pending publishes.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Nop discards every notification. Used when NATS_URL is unset.
type Nop struct{}

func (Nop) PublishNotification(context.Context, *domain.Notification) error { return nil }
