// Package routers registers the relay's http routes
package routers

import (
	"net/http"

	"chat-relay/internal/ctx"
	"chat-relay/internal/shared"
)

func sendError(c *ctx.Context, rerr *shared.RequestError) error {
	return c.JSON(rerr.StatusCode, shared.APIError{
		Message: rerr.Err.Error(),
		Type:    http.StatusText(rerr.StatusCode),
		Code:    rerr.StatusCode,
	})
}
