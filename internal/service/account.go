package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/auth"
	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
)

// AccountService registers accounts and exchanges credentials for tokens.
type AccountService struct {
	store  domain.AccountStore
	tokens *auth.TokenIssuer
	clock  clock.Clock
	logger zerolog.Logger

	hash func(string) (string, error)
}

var _ domain.AccountService = (*AccountService)(nil)

func NewAccountService(store domain.AccountStore, tokens *auth.TokenIssuer, clk clock.Clock, logger zerolog.Logger) *AccountService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AccountService{
		store:  store,
		tokens: tokens,
		clock:  clk,
		logger: logger.With().Str("component", "accounts").Logger(),
		hash:   auth.HashPassword,
	}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Register creates an account. The first account ever created is the admin.
func (s *AccountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, *domain.TokenPair, error) {
	const op = "account.register"

	ve := &domain.ValidationError{Op: op}
	addr := normalizeEmail(params.Email)
	if _, err := mail.ParseAddress(addr); err != nil {
		ve.Add("email", "email is not a valid address")
	}
	if err := mergeValidation(ve, auth.ValidatePassword(params.Password)); err != nil {
		return nil, nil, err
	}
	if err := ve.OrNil(); err != nil {
		return nil, nil, err
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "failed to hash password")
	}

	acct := &domain.Account{
		ID:           uuid.New(),
		Email:        addr,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, nil, withOp(err, op)
	}

	pair, err := s.tokens.Issue(acct)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "failed to issue tokens")
	}
	logFrom(ctx, s.logger).Info().
		Str("user_id", acct.ID.String()).
		Bool("is_admin", acct.IsAdmin).
		Msg("account registered")
	return acct, pair, nil
}

// Login never reveals whether the email exists.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, *domain.TokenPair, error) {
	const op = "account.login"

	acct, err := s.store.GetAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, withOp(domain.ErrInvalidCredentials, op)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := auth.VerifyPassword(password, acct.PasswordHash); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			logFrom(ctx, s.logger).Error().Err(err).Str("user_id", acct.ID.String()).Msg("stored password hash unreadable")
		}
		return nil, nil, withOp(domain.ErrInvalidCredentials, op)
	}

	pair, err := s.tokens.Issue(acct)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "failed to issue tokens")
	}
	return acct, pair, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// Refresh reloads the account so a revoked admin flag takes effect.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	const op = "account.refresh"

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, domain.Unauthorized(op, "Invalid or expired refresh token")
	}
	id, _ := claims.UserID()
	acct, err := s.store.GetAccount(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.Unauthorized(op, "Invalid or expired refresh token")
	}
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.Issue(acct)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to issue tokens")
	}
	return pair, nil
}
