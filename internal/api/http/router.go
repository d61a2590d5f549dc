package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/twofa-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/twofa-auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/register", cfg.Users.Register)
	app.Post("/login", cfg.Auth.Login)
	app.Post("/login/2fa", cfg.Auth.LoginTwoFactor)

	requireAuth := cfg.AuthMiddleware.Handle
	app.Get("/me", requireAuth, cfg.Auth.Me)
	app.Get("/user/:id", requireAuth, cfg.Users.Get)
	app.Get("/user-by-username/:username", requireAuth, cfg.Users.GetByUsername)
	app.Post("/enable-2fa/:id", requireAuth, auth.RequireSelf("id"), cfg.Auth.EnableSecondFactor)
	app.Get("/provisioning-uri/:id", requireAuth, auth.RequireSelf("id"), cfg.Auth.ProvisioningURI)
}
