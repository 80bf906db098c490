package api

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/mmynk/splitpilot/internal/metrics"
)

// CorsMiddleware allows browser clients from any origin; the API keys
// travel with each request, so there is no cookie-based session to protect.
func CorsMiddleware() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Api-Key, X-Gemini-Key",
		AllowMethods: "GET,POST,OPTIONS",
	})
}

// RateLimit caps a client to 60 requests per minute. The AI endpoints are
// the expensive ones, but one global limit keeps the surface simple.
func RateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}

// RequestLogger logs each request and records the Prometheus counters.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		elapsed := time.Since(start)

		// The app-level error handler has not run yet when an error
		// propagates, so the response status is taken from the error.
		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		slog.Info("request completed",
			"method", c.Method(),
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
		return err
	}
}
