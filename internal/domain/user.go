package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// USER DOMAIN TYPES
// =============================================================================

var (
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrEmailTaken         = &Error{Code: ECONFLICT, Message: "User with this email already exists"}
	ErrInvalidCredentials = &Error{Code: EUNAUTHENTICATED, Message: "Invalid credentials"}
)

// Account is a freelancer who owns clients, invoices and notifications.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns "First Last", falling back to the email.
func (a *Account) DisplayName() string {
	name := a.FirstName
	if a.LastName != "" {
		if name != "" {
			name += " "
		}
		name += a.LastName
	}
	if name == "" {
		return a.Email
	}
	return name
}

// AccountStore persists accounts.
type AccountStore interface {
	// CreateAccount inserts the account. The first account ever created is
	// stored as admin; IsAdmin on the argument is updated to match.
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
}

// AccountService registers and authenticates accounts.
type AccountService interface {
	Register(ctx context.Context, params RegisterParams) (*Account, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*Account, *TokenPair, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)

	// Refresh exchanges a refresh token for a new pair.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// RegisterParams contains parameters for registering an account.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// TokenPair is returned on register and login.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// =============================================================================
// EMAIL LOG
// =============================================================================

// EmailLogStatus records the outcome of one send attempt.
type EmailLogStatus string

const (
	EmailLogSent   EmailLogStatus = "sent"
	EmailLogFailed EmailLogStatus = "failed"
)

// EmailLog is one attempted outbound email.
type EmailLog struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Recipient        string
	Subject          string
	BodyPreview      string
	Status           EmailLogStatus
	RelatedInvoiceID *uuid.UUID
	CreatedAt        time.Time
}

type EmailLogStore interface {
	CreateEmailLog(ctx context.Context, log *EmailLog) error
}

// =============================================================================
// WEBHOOK EVENTS
// =============================================================================

// WebhookEventStore remembers provider event ids already applied.
type WebhookEventStore interface {
	WebhookEventProcessed(ctx context.Context, eventID string) (bool, error)

	// RecordWebhookEvent is a no-op for an id already recorded.
	RecordWebhookEvent(ctx context.Context, eventID, eventType string, at time.Time) error
}
