package routers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chat-relay/internal/ctx"
	"chat-relay/internal/inference"
	"chat-relay/internal/metrics"
	"chat-relay/internal/middleware"
	"chat-relay/internal/relay"
	"chat-relay/internal/shared"
	"chat-relay/internal/sse"
	"chat-relay/internal/usage"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
)

type ChatRouterConfig struct {
	Invoker    *inference.Invoker
	Transcoder *relay.Transcoder
	Catalog    *inference.Catalog
	// Usage is optional
	Usage     *usage.Cache
	RateLimit float64
}

type ChatRouter struct {
	invoker    *inference.Invoker
	transcoder *relay.Transcoder
	catalog    *inference.Catalog
	usage      *usage.Cache
}

func RegisterChatRoutes(e *echo.Group, cfg ChatRouterConfig) error {
	if cfg.Invoker == nil {
		return errors.New("chat routes need an invoker")
	}
	if cfg.Transcoder == nil {
		cfg.Transcoder = relay.NewTranscoder()
	}
	cr := &ChatRouter{
		invoker:    cfg.Invoker,
		transcoder: cfg.Transcoder,
		catalog:    cfg.Catalog,
		usage:      cfg.Usage,
	}

	api := e.Group("/api")
	api.POST("/chat", cr.Chat,
		emw.BodyLimit(shared.MaxRequestBodySize),
		middleware.NewRateLimitMiddleware(cfg.RateLimit),
	)
	if cr.catalog != nil {
		api.GET("/models", cr.Models)
	}
	return nil
}

func validatePayload(p *shared.ChatRequestPayload) *shared.RequestError {
	if p.Config.Model == "" {
		return shared.ErrMissingModel
	}
	if len(p.Messages) == 0 && p.Config.SystemMessage == "" {
		return shared.ErrMissingMessages
	}
	for i, m := range p.Messages {
		if !shared.ValidRole(m.Role) {
			return &shared.RequestError{
				StatusCode: http.StatusBadRequest,
				Err:        fmt.Errorf("messages[%d]: unknown role %q", i, m.Role),
			}
		}
	}
	return nil
}

// Chat relays one conversation turn. Failures before the first byte get a
// JSON error; once the stream has started the only signal left is an
// aborted connection.
func (cr *ChatRouter) Chat(cc echo.Context) error {
	c := cc.(*ctx.Context)
	lv := c.LogValues

	var payload shared.ChatRequestPayload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		lv.AddError(errors.Join(shared.ErrInvalidRequest, err))
		return sendError(c, shared.ErrInvalidRequest)
	}
	if rerr := validatePayload(&payload); rerr != nil {
		lv.AddError(rerr)
		return sendError(c, rerr)
	}

	model := payload.Config.Model
	messages := shared.AugmentMessages(payload.Messages, payload.Config.SystemMessage)
	label := cr.modelLabel(c, model)
	lv.Model = model
	lv.Messages = len(messages)
	log := c.Log.With("model", model)

	start := time.Now()
	rec := usage.Record{Model: label, At: start}
	metrics.InflightRequests.Inc()
	defer func() {
		metrics.InflightRequests.Dec()
		rec.TotalTime = time.Since(start)
		metrics.RequestDuration.WithLabelValues(label).Observe(rec.TotalTime.Seconds())
		if cr.usage != nil {
			cr.usage.Record(rec)
		}
	}()

	out, err := cr.invoker.Invoke(inference.InvokeInput{
		Ctx:      c.Request().Context(),
		Model:    model,
		Label:    label,
		Messages: messages,
		Log:      log,
	})
	if err != nil {
		var ierr *shared.InferenceError
		if errors.As(err, &ierr) {
			lv.Attempts = ierr.Attempts
			rec.Attempts = ierr.Attempts
		}
		lv.AddError(err)
		rec.Canceled = errors.Is(err, context.Canceled)
		metrics.ErrorCount.WithLabelValues(label, shared.MetricsCode(err)).Inc()
		metrics.RequestCount.WithLabelValues(label, "failed").Inc()
		return sendError(c, &shared.RequestError{
			StatusCode: http.StatusBadGateway,
			Err:        errors.New("inference backend unavailable"),
		})
	}
	defer func() {
		if err := out.Stream.Close(); err != nil {
			log.Debugw("Failed to close inference stream", "error", err)
		}
	}()
	lv.Attempts = out.Attempts
	rec.Attempts = out.Attempts

	sw := relay.NewStreamWriter(c.Request().Context(), c.Response())
	sw.Begin()
	lv.Streamed = true
	beganAfter := time.Since(start)

	err = sw.Relay(cr.transcoder.Transcode(sse.Decode(out.Stream)))

	stats := sw.Stats()
	lv.Chunks = stats.Chunks
	rec.Chunks = stats.Chunks
	metrics.ChunksRelayed.WithLabelValues(label).Add(float64(stats.Chunks))
	if stats.Chunks > 0 {
		ttft := beganAfter + stats.TimeToFirstChunk
		lv.TimeToFirstToken = ttft
		rec.TimeToFirstToken = ttft
		metrics.TimeToFirstToken.WithLabelValues(label).Observe(ttft.Seconds())
	}

	if err != nil {
		lv.AddError(err)
		var terr *shared.TransportError
		if errors.As(err, &terr) || errors.Is(err, context.Canceled) {
			rec.Canceled = true
			lv.LogLevel = "warn"
			metrics.RequestCount.WithLabelValues(label, "canceled").Inc()
		} else {
			lv.LogLevel = "error"
			metrics.RequestCount.WithLabelValues(label, "failed").Inc()
		}
		metrics.ErrorCount.WithLabelValues(label, shared.MetricsCode(err)).Inc()
		relay.Abort()
	}

	rec.Completed = true
	metrics.RequestCount.WithLabelValues(label, "success").Inc()
	return nil
}

// modelLabel bounds the model name used for metrics and usage stats to
// what the catalog lists, so client supplied names cannot add new series.
func (cr *ChatRouter) modelLabel(c *ctx.Context, model string) string {
	if cr.catalog == nil {
		return shared.OtherModelLabel
	}
	lookupCtx, cancel := context.WithTimeout(c.Request().Context(), shared.DefaultModelListTimeout)
	defer cancel()
	if !cr.catalog.Known(lookupCtx, model) {
		return shared.OtherModelLabel
	}
	return model
}

func (cr *ChatRouter) Models(cc echo.Context) error {
	c := cc.(*ctx.Context)

	reqCtx, cancel := context.WithTimeout(c.Request().Context(), shared.DefaultModelListTimeout)
	defer cancel()

	models, err := cr.catalog.List(reqCtx)
	if err != nil {
		c.LogValues.AddError(errors.Join(errors.New("failed to get models"), err))
		return sendError(c, shared.ErrModelsUnavailable)
	}
	return c.JSON(http.StatusOK, shared.ModelList{Data: models})
}
