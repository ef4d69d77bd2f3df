package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/auth"
	"github.com/dukerupert/ledgerly/internal/domain"
)

// ClaimsContextKey is the context key for the verified access token claims
const ClaimsContextKey contextKey = "claims"

// TokenParser verifies an access token. Implemented by *auth.TokenIssuer.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RequireAuth verifies the bearer access token and puts its claims and the
// domain principal on the context. Missing or unusable tokens get 401.
func RequireAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				respondUnauthorized(w, r, "Authentication required")
				return
			}

			claims, err := tokens.Parse(raw)
			var principal *domain.Principal
			if err == nil {
				principal, err = claims.Principal()
			}
			if err != nil {
				msg := "Invalid access token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "Access token expired"
				}
				respondUnauthorized(w, r, msg)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = domain.NewContextWithPrincipal(ctx, principal)

			l := zerolog.Ctx(ctx).With().Str("user_id", claims.Subject).Logger()
			ctx = l.WithContext(ctx)
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.Scope().SetUser(sentry.User{ID: claims.Subject})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireClaim rejects authenticated callers whose claims fail check with
// 403. It must run after RequireAuth.
func RequireClaim(check func(*auth.Claims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				respondUnauthorized(w, r, "Authentication required")
				return
			}
			if !check(claims) {
				respondForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims returns the verified claims, or nil on unauthenticated routes.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
