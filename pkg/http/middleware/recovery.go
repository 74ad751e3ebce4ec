package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"Ares/pkg/logger"
)

// Recover logs a handler panic with its stack and answers 500 in the API
// envelope, unless the response was already started.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				l.Error("handler panic",
					logger.String("route", c.Path()),
					logger.String("request_id", GetRequestID(c)),
					logger.String("panic", fmt.Sprint(r)),
					logger.String("stack", string(debug.Stack())),
				)
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":     http.StatusInternalServerError,
					"message":    "Internal Server Error",
					"request_id": GetRequestID(c),
				})
			}()
			return next(c)
		}
	}
}
