package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursora/coursora-go-api/internal/config"
	"github.com/coursora/coursora-go-api/internal/handler"
	"github.com/coursora/coursora-go-api/internal/middleware"
	"github.com/coursora/coursora-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RealtimeHandler  *handler.RealtimeHandler
	AdminHandler     *handler.AdminHandler
	AnalyticsHandler *handler.AnalyticsHandler
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Clients identify themselves in-band on the websocket, so the upgrade
	// endpoint itself is open.
	if deps.RealtimeHandler != nil {
		realtime := api.Group("/realtime")
		deps.RealtimeHandler.Register(realtime)
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"), middleware.RateLimit("admin", 120, time.Minute))
		deps.AdminHandler.Register(admin)
	}

	if deps.AnalyticsHandler != nil {
		analytics := api.Group("/analytics", jwtMiddleware, middleware.RequireRole("admin"), middleware.RateLimit("analytics", 120, time.Minute))
		deps.AnalyticsHandler.Register(analytics)
	}
}
