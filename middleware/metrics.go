// middleware/metrics.go
package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/maksab_backend/monitoring"
)

// Metrics records per-request counters and latency. The route pattern is
// used as the path label so /api/users/abc and /api/users/def share a series.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			monitoring.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
			monitoring.ResponseTimeHistogram.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
