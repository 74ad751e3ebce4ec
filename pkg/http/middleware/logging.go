package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"Ares/pkg/logger"
)

// RequestLogging writes a debug line per request. Failures are logged by Metrics.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error so the status below is final
				c.Error(err)
			}

			l.Debug("request",
				logger.String("method", c.Request().Method),
				logger.String("route", c.Path()),
				logger.String("uri", c.Request().RequestURI),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency_ms", time.Since(start)),
				logger.String("request_id", GetRequestID(c)),
				logger.String("remote", c.RealIP()),
			)
			return nil
		}
	}
}
