package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// SecureConfig is the header policy for the JSON API. HSTS is only emitted on
// TLS requests or when the proxy reports X-Forwarded-Proto: https.
var SecureConfig = echomw.SecureConfig{
	XSSProtection:         "0",
	ContentTypeNosniff:    "nosniff",
	XFrameOptions:         "DENY",
	HSTSMaxAge:            31536000,
	ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	ReferrerPolicy:        "no-referrer",
}

// SecurityHeaders applies SecureConfig and marks every response uncacheable,
// since score data is per patient.
func SecurityHeaders() echo.MiddlewareFunc {
	secure := echomw.SecureWithConfig(SecureConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return secure(func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
			return next(c)
		})
	}
}
