package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var ErrClientNotFound = &Error{Code: ENOTFOUND, Message: "Client not found"}

// Client is a customer of the freelancer, scoped to one owner.
type Client struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Company   string    `json:"company,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientPatch holds the allow-listed editable client fields. Nil means unchanged.
type ClientPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	Company *string
	TaxID   *string
	Notes   *string
}

// Apply copies the set fields onto c.
func (p ClientPatch) Apply(c *Client) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Name, p.Name)
	set(&c.Email, p.Email)
	set(&c.Phone, p.Phone)
	set(&c.Address, p.Address)
	set(&c.Company, p.Company)
	set(&c.TaxID, p.TaxID)
	set(&c.Notes, p.Notes)
}

// ClientStore persists clients. Lookups are owner-scoped and report
// ErrClientNotFound for ids belonging to another owner.
type ClientStore interface {
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, ownerID, id uuid.UUID) (*Client, error)
	ListClients(ctx context.Context, ownerID uuid.UUID) ([]Client, error)
	UpdateClient(ctx context.Context, c *Client) error
	DeleteClient(ctx context.Context, ownerID, id uuid.UUID) error
}

// ClientService manages an owner's clients.
type ClientService interface {
	CreateClient(ctx context.Context, params CreateClientParams) (*Client, error)
	GetClient(ctx context.Context, ownerID, clientID uuid.UUID) (*Client, error)
	ListClients(ctx context.Context, ownerID uuid.UUID) ([]Client, error)
	UpdateClient(ctx context.Context, ownerID, clientID uuid.UUID, patch ClientPatch) (*Client, error)
	DeleteClient(ctx context.Context, ownerID, clientID uuid.UUID) error
}

// CreateClientParams contains parameters for creating a client.
type CreateClientParams struct {
	OwnerID uuid.UUID
	Name    string
	Email   string
	Phone   string
	Address string
	Company string
	TaxID   string
	Notes   string
}
