package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
)

const issuer = "ledgerly"

// Token kinds carried in the "typ" claim.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
	ErrWrongKind    = errors.New("token kind not accepted here")
)

// Claims is the decoded bearer token. Subject holds the account id.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool   `json:"is_admin"`
	Kind    string `json:"typ"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Principal converts the claims into the identity services see.
func (c *Claims) Principal() (*domain.Principal, error) {
	id, err := c.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return &domain.Principal{UserID: id, IsAdmin: c.IsAdmin}, nil
}

// CanRunAdminJobs gates manual triggers of scheduled jobs.
func CanRunAdminJobs(c *Claims) bool {
	return c != nil && c.IsAdmin
}

// TokenConfig controls signing.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewTokenIssuer(cfg TokenConfig, clk clock.Clock) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clock:      clk,
	}, nil
}

// Issue returns a fresh access and refresh token for the account.
func (t *TokenIssuer) Issue(a *domain.Account) (*domain.TokenPair, error) {
	now := t.clock.Now()
	access, err := t.sign(a, TokenAccess, now, t.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(a, TokenRefresh, now, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(t.accessTTL),
	}, nil
}

func (t *TokenIssuer) sign(a *domain.Account, kind string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   a.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		IsAdmin: a.IsAdmin,
		Kind:    kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies an access token.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	return t.parse(token, TokenAccess)
}

// ParseRefresh verifies a refresh token.
func (t *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	return t.parse(token, TokenRefresh)
}

func (t *TokenIssuer) parse(token, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return claims, nil
}
