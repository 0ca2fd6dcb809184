// Package middleware holds the echo middleware shared by every route
package middleware

import (
	"fmt"
	"time"

	"chat-relay/internal/ctx"
	"chat-relay/internal/metrics"
	"chat-relay/internal/shared"

	"github.com/aidarkhanov/nanoid"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewTrackMiddleware wraps every request in a *ctx.Context and writes one
// end_of_request line for it. The line is written from a defer so relays
// that abort their connection mid stream are still logged.
func NewTrackMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID, _ := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 28)
			reqID = "req_" + reqID
			logger := log.With("request_id", reqID)

			cc := &ctx.Context{
				Context: c,
				Log:     logger,
				Reqid:   reqID,
				LogValues: &ctx.ContextLogValues{
					RequestID: reqID,
					RemoteIP:  c.RealIP(),
					StartTime: time.Now(),
					Path:      c.Path(),
				},
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)

			defer func() {
				lv := cc.LogValues
				lv.RequestDuration = time.Since(lv.StartTime)
				lv.StatusCode = cc.Response().Status
				log.Desugar().Check(lv.Level(), "end_of_request").Write(zap.Object("request", lv))
				metrics.ResponseCodes.WithLabelValues(lv.Path, fmt.Sprintf("%d", lv.StatusCode)).Inc()
			}()
			return next(cc)
		}
	}
}

func NewRecoverMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return emw.RecoverWithConfig(emw.RecoverConfig{
		StackSize: 1 << 10, // 1 KB
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			defer func() {
				_ = log.Sync()
			}()
			log.Errorw("Api Panic", "error", err.Error(), "stack", string(stack))
			return c.JSON(500, shared.APIError{
				Message: shared.ErrInternalServerError.Err.Error(),
				Type:    "InternalError",
				Code:    500,
			})
		},
	})
}
