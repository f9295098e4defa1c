package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HTTPRecorder receives per-request metrics
type HTTPRecorder interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

// Logger logs every request and, when recorder is non-nil, records its
// metrics under the matched route pattern.
func Logger(logger *slog.Logger, recorder HTTPRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		latency := time.Since(start)

		// Errors are rendered later by the app error handler; resolve the
		// final status here so logs and metrics agree with the response.
		status := c.Response().StatusCode()
		if err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			status = c.Response().StatusCode()
			err = nil
		}

		// Log level based on status
		logLevel := slog.LevelInfo
		if status >= 500 {
			logLevel = slog.LevelError
		} else if status >= 400 {
			logLevel = slog.LevelWarn
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.String("ip", c.IP()),
			slog.String("user_agent", c.Get("User-Agent")),
		}
		if rid, ok := c.Locals("requestid").(string); ok {
			attrs = append(attrs, slog.String("request_id", rid))
		}
		logger.Log(c.Context(), logLevel, "http request", attrs...)

		if recorder != nil {
			recorder.ObserveHTTP(c.Route().Path, c.Method(), status, latency)
		}

		return err
	}
}
