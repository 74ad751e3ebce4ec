package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// CORS answers preflight requests and echoes allowed origins. The request id
// header is exposed so browser clients can quote it.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  cfg.AllowMethods,
		AllowHeaders:  append([]string{echo.HeaderXRequestID}, cfg.AllowHeaders...),
		ExposeHeaders: []string{echo.HeaderXRequestID},
		MaxAge:        600,
	})
}
