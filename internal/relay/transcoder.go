// Package relay turns decoded inference events into the plain text stream
// written back to the browser.
package relay

import (
	"encoding/json"
	"errors"
	"iter"

	"chat-relay/internal/shared"
	"chat-relay/internal/sse"
)

// Transcoder maps events to text chunks. It keeps no state between events.
type Transcoder struct {
	skipSchemaErrors bool
	onSkip           func(error)
}

type Option func(*Transcoder)

// WithSkipSchemaErrors drops events that carry no response field instead of
// failing the stream. onSkip, if set, sees every dropped event's error.
func WithSkipSchemaErrors(onSkip func(error)) Option {
	return func(t *Transcoder) {
		t.skipSchemaErrors = true
		t.onSkip = onSkip
	}
}

func NewTranscoder(opts ...Option) *Transcoder {
	t := &Transcoder{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcode yields one chunk per data event, in order. The [DONE] sentinel
// yields nothing and ends the sequence. A malformed event, or a schema
// mismatch when not skipping, is yielded as an error and ends the sequence.
func (t *Transcoder) Transcode(events iter.Seq2[sse.Event, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for ev, err := range events {
			if err != nil {
				yield("", err)
				return
			}
			if ev.Data == shared.DoneSentinel {
				return
			}
			token, err := ExtractResponse(ev.Data)
			if err != nil {
				var serr *shared.SchemaError
				if t.skipSchemaErrors && errors.As(err, &serr) {
					if t.onSkip != nil {
						t.onSkip(err)
					}
					continue
				}
				yield("", err)
				return
			}
			if !yield(token, nil) {
				return
			}
		}
	}
}

type delta struct {
	Response *string `json:"response"`
}

// ExtractResponse unwraps the response field of one event payload.
func ExtractResponse(data string) (string, error) {
	var d delta
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return "", &shared.SchemaError{Data: data, Field: "response", Err: err}
		}
		return "", &shared.MalformedEventError{Data: data, Err: err}
	}
	if d.Response == nil {
		return "", &shared.SchemaError{Data: data, Field: "response"}
	}
	return *d.Response, nil
}
