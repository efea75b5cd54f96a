package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/claim-bot/internal/api/http/handlers"
	"github.com/spec-kit/claim-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/admin/login", cfg.Admin.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Get("/metrics", cfg.Admin.Metrics)
	admin.Post("/cleanup", cfg.Admin.Cleanup)
	admin.Post("/purge-completed", cfg.Admin.PurgeCompleted)
}
