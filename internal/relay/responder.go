package relay

import (
	"context"
	"io"
	"iter"
	"net/http"
	"time"

	"chat-relay/internal/shared"
)

// Stats describes what a StreamWriter pushed to the client.
type Stats struct {
	Chunks int
	Bytes  int
	// TimeToFirstChunk is measured from Begin
	TimeToFirstChunk time.Duration
}

// StreamWriter owns the outbound response for one relay. Headers go out on
// Begin, before any chunk exists, and every chunk is flushed as it is
// written so the client sees tokens as they arrive.
type StreamWriter struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher

	started time.Time
	stats   Stats
}

func NewStreamWriter(ctx context.Context, w http.ResponseWriter) *StreamWriter {
	flusher, _ := w.(http.Flusher)
	return &StreamWriter{ctx: ctx, w: w, flusher: flusher}
}

// Started reports whether headers have been committed.
func (s *StreamWriter) Started() bool {
	return !s.started.IsZero()
}

func (s *StreamWriter) Stats() Stats {
	return s.stats
}

func (s *StreamWriter) Begin() {
	if s.Started() {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=UTF-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flush()
	s.started = time.Now()
}

// Write sends chunk verbatim. Failures, including a client that already went
// away, come back as *shared.TransportError.
func (s *StreamWriter) Write(chunk string) error {
	s.Begin()
	if err := s.ctx.Err(); err != nil {
		return &shared.TransportError{Err: err}
	}
	if chunk == "" {
		return nil
	}
	n, err := io.WriteString(s.w, chunk)
	s.stats.Bytes += n
	if err != nil {
		return &shared.TransportError{Err: err}
	}
	if s.stats.Chunks == 0 {
		s.stats.TimeToFirstChunk = time.Since(s.started)
	}
	s.stats.Chunks++
	s.flush()
	return nil
}

// Relay begins the response and writes chunks until the sequence ends or
// fails. The first error, upstream or transport, is returned; headers are
// already committed by then so the caller can only abort the connection.
func (s *StreamWriter) Relay(chunks iter.Seq2[string, error]) error {
	s.Begin()
	for chunk, err := range chunks {
		if err != nil {
			return err
		}
		if err := s.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *StreamWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// Abort tears down the client connection without finishing the response
// body, so a chunked response ends without its terminating chunk. It never
// returns.
func Abort() {
	panic(http.ErrAbortHandler)
}
