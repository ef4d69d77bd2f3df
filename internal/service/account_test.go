package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/ledgerly/internal/auth"
	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
)

func newAccountService(t *testing.T) (*AccountService, *auth.TokenIssuer, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(fixtureStart)
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: "test-secret"}, clk)
	require.NoError(t, err)
	svc := NewAccountService(newMemAccounts(), tokens, clk, zerolog.Nop())
	svc.hash = func(pw string) (string, error) {
		b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		return string(b), err
	}
	return svc, tokens, clk
}

func TestAccountService_RegisterFirstIsAdmin(t *testing.T) {
	svc, tokens, _ := newAccountService(t)
	ctx := context.Background()

	first, pair, err := svc.Register(ctx, domain.RegisterParams{Email: " Ada@Example.com ", Password: "correct horse", FirstName: "Ada"})
	require.NoError(t, err)
	second, _, err := svc.Register(ctx, domain.RegisterParams{Email: "grace@example.com", Password: "correct horse"})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", first.Email)
	assert.True(t, first.IsAdmin)
	assert.False(t, second.IsAdmin)
	assert.NotEqual(t, "correct horse", first.PasswordHash)

	claims, err := tokens.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.True(t, auth.CanRunAdminJobs(claims))
}

func TestAccountService_RegisterValidation(t *testing.T) {
	svc, _, _ := newAccountService(t)

	_, _, err := svc.Register(context.Background(), domain.RegisterParams{Email: "nope", Password: "short"})

	require.True(t, domain.IsValidationError(err))
	fields := domain.GetValidationFields(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestAccountService_RegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, domain.RegisterParams{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, domain.RegisterParams{Email: "ADA@example.com", Password: "correct horse"})

	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestAccountService_Login(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, domain.RegisterParams{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	acct, pair, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acct.Email)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAccountService_Refresh(t *testing.T) {
	svc, tokens, clk := newAccountService(t)
	ctx := context.Background()
	_, pair, err := svc.Register(ctx, domain.RegisterParams{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = tokens.Parse(pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenExpired)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = tokens.Parse(next.AccessToken)
	assert.NoError(t, err)
}

func TestAccountService_RefreshRejectsAccessToken(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()
	_, pair, err := svc.Register(ctx, domain.RegisterParams{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)

	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}
