// Package inference talks to the hosted text generation backend.
package inference

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"chat-relay/internal/metrics"
	"chat-relay/internal/shared"

	"go.uber.org/zap"
)

// Runner starts one streaming generation. The returned stream is in event
// stream framing and must be closed by the caller.
type Runner interface {
	Run(ctx context.Context, model string, messages []shared.ChatMessage) (io.ReadCloser, error)
}

// RetryPolicy bounds how often and how fast a failed Run is retried.
// A zero Backoff retries immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: shared.DefaultMaxAttempts,
		MaxBackoff:  shared.DefaultRetryMaxBackoff,
	}
}

// delay is the wait before the attempt following attempt n (1 based).
// Doubling stops short of overflow, so an uncapped policy saturates
// instead of wrapping to zero.
func (p RetryPolicy) delay(n int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < n && d <= math.MaxInt64/2; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			break
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

type Invoker struct {
	runner Runner
	policy RetryPolicy
	log    *zap.SugaredLogger
}

func NewInvoker(runner Runner, policy RetryPolicy, log *zap.SugaredLogger) *Invoker {
	return &Invoker{runner: runner, policy: policy, log: log}
}

type InvokeInput struct {
	Ctx      context.Context
	Model    string
	Messages []shared.ChatMessage
	// Label is the model name used for metrics. It defaults to Model and
	// should be a bounded value when Model comes from a client.
	Label string
	// Log defaults to the invoker logger
	Log *zap.SugaredLogger
}

type InvokeOutput struct {
	Stream   io.ReadCloser
	Attempts int
}

// retryState only lives for one Invoke call.
type retryState struct {
	attempt   int
	lastError error
	succeeded bool
}

// Invoke runs the model until one attempt succeeds, the policy is
// exhausted or the backend rejects the request with a non-retryable 4xx. The error is always an *shared.InferenceError wrapping the last
// attempt's error.
func (iv *Invoker) Invoke(input InvokeInput) (*InvokeOutput, error) {
	log := input.Log
	if log == nil {
		log = iv.log
	}
	ctx := input.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	label := input.Label
	if label == "" {
		label = input.Model
	}

	var state retryState
	for !state.succeeded && state.attempt < iv.policy.MaxAttempts {
		if state.attempt > 0 {
			if err := sleep(ctx, iv.policy.delay(state.attempt)); err != nil {
				state.lastError = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			state.lastError = err
			break
		}

		stream, err := iv.runner.Run(ctx, input.Model, input.Messages)
		state.attempt++
		if err != nil {
			state.lastError = err
			metrics.InferenceAttempts.WithLabelValues(label, "error").Inc()
			log.Warnw("Inference attempt failed", "attempt", state.attempt, "max_attempts", iv.policy.MaxAttempts, "error", err)
			if !retryable(err) {
				break
			}
			continue
		}

		state.succeeded = true
		metrics.InferenceAttempts.WithLabelValues(label, "success").Inc()
		if state.attempt > 1 {
			log.Infow("Inference succeeded after retry", "attempt", state.attempt)
		}
		return &InvokeOutput{Stream: stream, Attempts: state.attempt}, nil
	}

	if state.lastError == nil {
		state.lastError = shared.ErrProblemWithModel
	}
	return nil, &shared.InferenceError{Model: input.Model, Attempts: state.attempt, Err: state.lastError}
}

// retryable is false for backend rejections that will not change on a
// second try: any 4xx except request timeout and rate limiting.
func retryable(err error) bool {
	var rerr *shared.RequestError
	if !errors.As(err, &rerr) {
		return true
	}
	switch {
	case rerr.StatusCode == http.StatusRequestTimeout, rerr.StatusCode == http.StatusTooManyRequests:
		return true
	case rerr.StatusCode >= 400 && rerr.StatusCode < 500:
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
