// Package middleware holds the gin middleware of the HTTP server.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
)

// HTTPObserver receives one observation per handled request.  The Prometheus
// metrics implement it.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, seconds float64)
}

// RequestLogger logs each request once, after the handler chain ran, and
// feeds the observer.  Routes are recorded by pattern, not raw path, to keep
// metric cardinality bounded.
func RequestLogger(log logging.Logger, obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("route", route),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("elapsed", elapsed),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("error", c.Errors.Last().Error()))
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request handled", fields...)
		}

		if obs != nil {
			obs.ObserveHTTP(c.Request.Method, route, status, elapsed.Seconds())
		}
	}
}
