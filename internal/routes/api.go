package routes

import (
	"github.com/dukerupert/ledgerly/internal/auth"
	"github.com/dukerupert/ledgerly/internal/middleware"
	"github.com/dukerupert/ledgerly/internal/router"
)

// RegisterAPIRoutes registers the JSON API. Everything except the auth
// entry points requires a bearer access token.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	body := r.Group(middleware.MaxBodySize(middleware.DefaultMaxBodySize))

	public := body
	if deps.AuthRateLimit != nil {
		public = body.Group(deps.AuthRateLimit)
	}
	public.Post("/api/auth/register", deps.AuthHandler.Register)
	public.Post("/api/auth/login", deps.AuthHandler.Login)
	public.Post("/api/auth/refresh", deps.AuthHandler.Refresh)

	authed := body.Group(middleware.RequireAuth(deps.Tokens))
	authed.Get("/api/auth/me", deps.AuthHandler.Me)

	// Clients
	authed.Get("/api/clients", deps.ClientHandler.List)
	authed.Post("/api/clients", deps.ClientHandler.Create)
	authed.Get("/api/clients/{id}", deps.ClientHandler.Get)
	authed.Put("/api/clients/{id}", deps.ClientHandler.Update)
	authed.Delete("/api/clients/{id}", deps.ClientHandler.Delete)

	// Invoices
	authed.Get("/api/invoices", deps.InvoiceHandler.List)
	authed.Post("/api/invoices", deps.InvoiceHandler.Create)
	authed.Get("/api/invoices/{id}", deps.InvoiceHandler.Get)
	authed.Put("/api/invoices/{id}", deps.InvoiceHandler.Update)
	authed.Delete("/api/invoices/{id}", deps.InvoiceHandler.Delete)
	authed.Post("/api/invoices/{id}/generate-pdf", deps.InvoiceHandler.GeneratePDF)
	authed.Post("/api/invoices/{id}/create-payment-link", deps.InvoiceHandler.CreatePaymentLink)
	authed.Post("/api/invoices/{id}/send", deps.InvoiceHandler.Send)
	authed.Post("/api/invoices/{id}/viewed", deps.InvoiceHandler.MarkViewed)
	authed.Get("/api/payments", deps.InvoiceHandler.ListPayments)
	authed.Get("/api/dashboard", deps.InvoiceHandler.Dashboard)

	// Notifications
	authed.Get("/api/notifications", deps.NotificationHandler.List)
	authed.Put("/api/notifications/read-all", deps.NotificationHandler.MarkAllRead)
	authed.Put("/api/notifications/{id}/read", deps.NotificationHandler.MarkRead)

	// Manual job triggers
	admin := authed.Group(middleware.RequireClaim(auth.CanRunAdminJobs))
	admin.Post("/api/admin/overdue-sweep", deps.AdminHandler.RunOverdueSweep)
}

// RegisterOpsRoutes registers health, metrics and local uploads.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
	if deps.UploadsDir != "" {
		r.Static("/uploads", deps.UploadsDir)
	}
}
