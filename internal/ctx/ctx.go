// Package ctx
package ctx

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogValues should only be accessed for logging, and not for
// actual business logic, or any other logic
type ContextLogValues struct {
	// Added in base middleware
	RequestID       string
	RemoteIP        string
	StartTime       time.Time
	StatusCode      int
	RequestDuration time.Duration
	Path            string

	// Added by the chat route
	Model            string
	Messages         int
	Attempts         int
	Chunks           int
	TimeToFirstToken time.Duration
	Streamed         bool

	// Override log Log Level
	// useful for streaming where status code is sent before errors from
	// mid-stream occur
	LogLevel string

	// Added dynamically
	Error error
}

// AddError adds errors to the error chain. Always add errors, even if only warnings.
// Log level is determined by the status code of the request
func (c *ContextLogValues) AddError(err error) {
	if err == nil {
		return
	}
	if c.Error == nil {
		c.Error = err
		return
	}
	c.Error = fmt.Errorf("%w: %w", err, c.Error)
}

func (c *ContextLogValues) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("request_id", c.RequestID)
	enc.AddString("remote_ip", c.RemoteIP)
	enc.AddTime("start_time", c.StartTime)
	enc.AddDuration("request_duration", c.RequestDuration)
	enc.AddInt("status_code", c.StatusCode)
	enc.AddString("path", c.Path)
	if c.Model != "" {
		enc.AddString("model", c.Model)
		enc.AddInt("messages", c.Messages)
		enc.AddInt("attempts", c.Attempts)
		enc.AddInt("chunks", c.Chunks)
		enc.AddBool("streamed", c.Streamed)
		if c.TimeToFirstToken != 0 {
			enc.AddDuration("ttft", c.TimeToFirstToken)
		}
	}
	if c.Error != nil {
		enc.AddString("error", c.Error.Error())
	}
	return nil
}

// Level picks the level the end of request line is written at.
func (c *ContextLogValues) Level() zapcore.Level {
	if c.LogLevel != "" {
		if lvl, err := zapcore.ParseLevel(c.LogLevel); err == nil {
			return lvl
		}
	}
	switch {
	case c.StatusCode >= 500:
		return zapcore.ErrorLevel
	case c.StatusCode >= 400 || c.Error != nil:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

type Context struct {
	echo.Context
	Log       *zap.SugaredLogger
	Reqid     string
	LogValues *ContextLogValues
}
