package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp builds the Fiber application with middleware and routes wired.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 12 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			}
			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(CorsMiddleware())
	app.Use(RequestLogger())
	app.Use(RateLimit())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/api/initialize", h.Initialize)
	app.Get("/api/members", h.Members)
	app.Get("/api/groups", h.Groups)
	app.Post("/api/analyze-bills", h.AnalyzeBills)
	app.Post("/api/process-voice", h.ProcessVoice)
	app.Post("/api/create-expense", h.CreateExpense)
	app.Post("/api/update-expense", h.UpdateExpense)
	app.Get("/api/get-expense", h.GetExpense)
	app.Get("/api/splits", h.ListSplits)

	return app
}
