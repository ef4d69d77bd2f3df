package routes

import (
	"net/http"

	"github.com/dukerupert/ledgerly/internal/handler/api"
	"github.com/dukerupert/ledgerly/internal/middleware"
)

// APIDeps contains dependencies for the owner-facing JSON API
type APIDeps struct {
	Tokens middleware.TokenParser

	AuthHandler         *api.AuthHandler
	ClientHandler       *api.ClientHandler
	InvoiceHandler      *api.InvoiceHandler
	NotificationHandler *api.NotificationHandler
	AdminHandler        *api.AdminHandler

	// AuthRateLimit guards register, login and refresh. Nil disables it.
	AuthRateLimit func(http.Handler) http.Handler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains the unauthenticated operational endpoints
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler

	// UploadsDir is served at /uploads when local storage is in use.
	UploadsDir string
}
