package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ledgerly/internal/domain"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subject, c.data = subject, data
	return nil
}

func (c *fakeConn) Drain() error { return nil }

func TestNATSPublisher_PublishNotification(t *testing.T) {
	nc := &fakeConn{}
	p := &NATSPublisher{nc: nc, prefix: "ledgerly"}
	n := &domain.Notification{ID: uuid.New(), UserID: uuid.New(), Type: domain.NotificationInvoicePaid, Message: "paid"}

	require.NoError(t, p.PublishNotification(context.Background(), n))

	assert.Equal(t, "ledgerly.notifications."+n.UserID.String(), nc.subject)
	var got domain.Notification
	require.NoError(t, json.Unmarshal(nc.data, &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, domain.NotificationInvoicePaid, got.Type)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	p := &NATSPublisher{nc: &fakeConn{err: errors.New("nats: connection closed")}}

	err := p.PublishNotification(context.Background(), &domain.Notification{UserID: uuid.New()})

	assert.ErrorContains(t, err, "connection closed")
}

func TestNotificationSubject_DefaultPrefix(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "ledgerly.notifications."+id.String(), NotificationSubject("", id))
	assert.Equal(t, "acme.notifications."+id.String(), NotificationSubject("acme", id))
}
