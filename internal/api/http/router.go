package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eventgate/ticket-lifecycle/internal/api/http/handlers"
	"github.com/eventgate/ticket-lifecycle/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Lifecycle      *handlers.LifecycleHandler
	Audit          *handlers.AuditHandler
	Registration   *handlers.RegistrationHandler
	Settlement     *handlers.SettlementHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle)

	v1.Post("/events", cfg.Registration.CreateEvent)
	v1.Post("/events/:id/tickets", cfg.Registration.CreateTicket)

	lifecycle := v1.Group("/lifecycle/:kind/:id")
	lifecycle.Post("/transitions", cfg.Lifecycle.Transition)
	lifecycle.Get("/status", cfg.Lifecycle.Status)
	lifecycle.Get("/audit", cfg.Lifecycle.Audit)
	lifecycle.Get("/timeline", cfg.Lifecycle.Timeline)

	audit := v1.Group("/audit")
	audit.Get("/correlations/:id", cfg.Audit.Correlation)
	audit.Get("/recent", cfg.Audit.Recent)
	audit.Get("/incomplete", cfg.Audit.Incomplete)

	tickets := v1.Group("/tickets/:id")
	tickets.Post("/stake/verify", cfg.Settlement.VerifyStake)
	settlement := tickets.Group("/settlement", auth.RequireService())
	settlement.Post("/release", cfg.Settlement.Release)
	settlement.Post("/forfeit", cfg.Settlement.Forfeit)
}
