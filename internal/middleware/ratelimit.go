package middleware

import (
	"net/http"

	"chat-relay/internal/ctx"
	"chat-relay/internal/shared"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// NewRateLimitMiddleware caps requests per second per client ip. A limit of
// zero or less disables it.
func NewRateLimitMiddleware(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := emw.NewRateLimiterMemoryStore(rate.Limit(perSecond))
	return emw.RateLimiterWithConfig(emw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, shared.APIError{
				Message: "could not identify client",
				Type:    "Forbidden",
				Code:    http.StatusForbidden,
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if cc, ok := c.(*ctx.Context); ok {
				cc.LogValues.AddError(err)
			}
			return c.JSON(http.StatusTooManyRequests, shared.APIError{
				Message: "rate limit exceeded",
				Type:    "RateLimited",
				Code:    http.StatusTooManyRequests,
			})
		},
	})
}
