// Package domain provides the core business types of Ledgerly: invoices,
// their state machine, clients, notifications and the error taxonomy.
//
// Context helpers centralize request-scoped data access so owner scoping is
// read the same way everywhere.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	principalContextKey contextKey = iota
	requestIDContextKey
)

// Principal is the authenticated caller, decoded from the access token.
type Principal struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// --- Principal Context Helpers ---

// NewContextWithPrincipal returns a new context with the principal attached.
func NewContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal from context.
// Returns nil if the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// UserIDFromContext returns the caller's user id, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return uuid.Nil
}

// --- Request ID Context Helpers ---

func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
