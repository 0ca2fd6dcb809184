package middleware

import (
	"chat-relay/internal/shared"

	"github.com/labstack/echo/v4"
)

// RequireAPIKey guards operator endpoints such as /metrics with a static
// bearer key. An empty key leaves the route open.
func RequireAPIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return next(c)
			}
			apiKey, err := shared.ExtractAPIKey(c)
			if err != nil {
				return c.String(401, "Missing or invalid API key")
			}
			if apiKey != key {
				return c.String(401, "Unauthorized API key")
			}
			return next(c)
		}
	}
}
