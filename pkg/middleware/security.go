package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeadersPreset selects the strictness of the response headers the
// HTTP+SSE transport sends on every response.
type SecurityHeadersPreset string

const (
	PresetDefault SecurityHeadersPreset = "default"
	PresetRelaxed SecurityHeadersPreset = "relaxed"
	PresetStrict  SecurityHeadersPreset = "strict"
)

// SecurityHeaders returns an Echo middleware that sets a fixed set of
// response headers according to preset. This only applies to the HTTP+SSE
// transport: JSON-RPC over stdio/tcp/unix/websocket has no concept of an
// HTTP response header.
func SecurityHeaders(preset SecurityHeadersPreset) echo.MiddlewareFunc {
	headers := headersForPreset(preset)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			return next(c)
		}
	}
}

func headersForPreset(preset SecurityHeadersPreset) map[string]string {
	switch preset {
	case PresetRelaxed:
		return map[string]string{
			"X-Content-Type-Options":  "nosniff",
			"X-Frame-Options":         "SAMEORIGIN",
			"Content-Security-Policy": "default-src 'self' 'unsafe-inline' 'unsafe-eval'",
		}
	case PresetStrict:
		return map[string]string{
			"X-Content-Type-Options":   "nosniff",
			"X-Frame-Options":          "DENY",
			"X-XSS-Protection":         "1; mode=block",
			"Content-Security-Policy":  "default-src 'none'",
			"Referrer-Policy":          "no-referrer",
			"Strict-Transport-Security": "max-age=63072000; includeSubDomains",
		}
	default: // PresetDefault
		return map[string]string{
			"X-Content-Type-Options":    "nosniff",
			"X-Frame-Options":           "DENY",
			"X-XSS-Protection":          "1; mode=block",
			"Content-Security-Policy":   "default-src 'self'",
			"Referrer-Policy":           "strict-origin-when-cross-origin",
			"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		}
	}
}
