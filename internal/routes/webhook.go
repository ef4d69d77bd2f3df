package routes

import (
	"github.com/dukerupert/ledgerly/internal/middleware"
	"github.com/dukerupert/ledgerly/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes carry no bearer authentication. The handler verifies the
// provider signature over the raw body instead.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler, middleware.MaxBodySize(middleware.WebhookMaxBodySize))
}
