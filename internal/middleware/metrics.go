package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/metrics"
)

// MetricsMiddleware records request counts and latency by route pattern,
// so path parameters do not explode label cardinality.
func MetricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		if path == "" {
			path = "unmatched"
		}
		m.ObserveRequest(c.Method(), path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
