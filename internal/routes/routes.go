package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/incidentdesk/incident-board/internal/handlers"
)

func Setup(
	app *fiber.App,
	reportHandler *handlers.ReportHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Reports are anonymous: creation hands out no account, closing is gated
	// by the per-report password alone.
	api.Get("/reports", reportHandler.List)
	api.Post("/reports", reportHandler.Create)
	api.Put("/reports/:id/close", reportHandler.Close)
	api.Post("/reports/:id/comments", reportHandler.AddComment)
}
