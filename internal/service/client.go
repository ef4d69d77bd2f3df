package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
)

// ClientService is owner-scoped client CRUD.
type ClientService struct {
	store  domain.ClientStore
	clock  clock.Clock
	logger zerolog.Logger
}

var _ domain.ClientService = (*ClientService)(nil)

func NewClientService(store domain.ClientStore, clk clock.Clock, logger zerolog.Logger) *ClientService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ClientService{store: store, clock: clk, logger: logger}
}

func validateClient(op string, c *domain.Client) error {
	ve := &domain.ValidationError{Op: op}
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		ve.Add("name", "name is required")
	}
	if c.Email == "" {
		ve.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		ve.Add("email", "email is not a valid address")
	}
	return ve.OrNil()
}

func (s *ClientService) CreateClient(ctx context.Context, params domain.CreateClientParams) (*domain.Client, error) {
	now := s.clock.Now()
	c := &domain.Client{
		ID:        uuid.New(),
		UserID:    params.OwnerID,
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		Address:   params.Address,
		Company:   params.Company,
		TaxID:     params.TaxID,
		Notes:     params.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateClient("client.create", c); err != nil {
		return nil, err
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, withOp(err, "client.create")
	}
	return c, nil
}

func (s *ClientService) GetClient(ctx context.Context, ownerID, clientID uuid.UUID) (*domain.Client, error) {
	return s.store.GetClient(ctx, ownerID, clientID)
}

func (s *ClientService) ListClients(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error) {
	return s.store.ListClients(ctx, ownerID)
}

func (s *ClientService) UpdateClient(ctx context.Context, ownerID, clientID uuid.UUID, patch domain.ClientPatch) (*domain.Client, error) {
	c, err := s.store.GetClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	if err := validateClient("client.update", c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateClient(ctx, c); err != nil {
		return nil, withOp(err, "client.update")
	}
	return c, nil
}

func (s *ClientService) DeleteClient(ctx context.Context, ownerID, clientID uuid.UUID) error {
	return withOp(s.store.DeleteClient(ctx, ownerID, clientID), "client.delete")
}
