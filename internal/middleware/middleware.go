// Package middleware holds the HTTP middleware of the API: request ids,
// request-scoped logging, bearer authentication, claim checks, metrics,
// rate limiting and body limits.
package middleware

import (
	"net/http"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

type contextKey string

func respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	handler.ErrorResponse(w, r, domain.Unauthorized("auth.bearer", message))
}

func respondForbidden(w http.ResponseWriter, r *http.Request) {
	handler.ForbiddenResponse(w, r)
}

func respondTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	handler.JSON(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]string{"code": "rate_limited", "message": "Too many requests"},
	})
}
