package shared

import (
	"errors"
	"fmt"
)

// RequestError is used when we want a specific error message and StatusCode.
// Handlers return the Err message to the user as is, so anything that should
// only be logged belongs further down the error chain.
type RequestError struct {
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

var (
	ErrMissingAuth   = &RequestError{Err: errors.New("missing authorization header"), StatusCode: 401}
	ErrInvalidFormat = &RequestError{Err: errors.New("invalid authentication format"), StatusCode: 401}
	ErrInvalidKeyLen = &RequestError{Err: errors.New("invalid API key length"), StatusCode: 401}

	ErrInvalidRequest      = &RequestError{Err: errors.New("invalid request body"), StatusCode: 400}
	ErrMissingModel        = &RequestError{Err: errors.New("config.model is required"), StatusCode: 400}
	ErrMissingMessages     = &RequestError{Err: errors.New("messages must not be empty"), StatusCode: 400}
	ErrInternalServerError = &RequestError{Err: errors.New("internal server error"), StatusCode: 500}
	ErrModelsUnavailable   = &RequestError{Err: errors.New("model catalog unavailable"), StatusCode: 502}

	ErrProblemWithModel = errors.New("Problem with model")

	ErrFailedModelReq         = &MetricsError{Msg: "failed to send http request to model", Code: "model_http_err"}
	ErrFailedModelReqFromCode = &MetricsError{Msg: "model responded with non-200", Code: "model_http_status_err"}
	ErrFailedReadingResponse  = &MetricsError{Msg: "failed to read model response", Code: "model_response_err"}
	ErrMalformedEvent         = &MetricsError{Msg: "malformed stream event", Code: "malformed_event"}
	ErrSchemaMismatch         = &MetricsError{Msg: "stream event missing response", Code: "schema_error"}
	ErrClientGone             = &MetricsError{Msg: "client went away mid stream", Code: "client_canceled"}
)

type MetricsError struct {
	Msg  string
	Code string
}

func (m *MetricsError) Error() string {
	return m.String()
}

func (m *MetricsError) String() string {
	return m.Msg
}

// InferenceError is returned once every attempt against the inference
// backend has failed. Err is the last captured attempt error.
type InferenceError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed for %s after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// MalformedEventError means an event's data field was not valid JSON.
type MalformedEventError struct {
	Data string
	Err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event data %q: %v", e.Data, e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// SchemaError means an event decoded as JSON but carried no usable string
// response field.
type SchemaError struct {
	Data  string
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event %q: field %s: %v", e.Data, e.Field, e.Err)
	}
	return fmt.Sprintf("event %q: missing field %s", e.Data, e.Field)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// TransportError wraps failures writing to the outbound client connection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MetricsCode maps an error chain to the label used for the error_count
// metric.
func MetricsCode(err error) string {
	var merr *MetricsError
	if errors.As(err, &merr) {
		return merr.Code
	}
	var (
		ierr  *InferenceError
		mferr *MalformedEventError
		serr  *SchemaError
		terr  *TransportError
	)
	switch {
	case errors.As(err, &ierr):
		return "inference_exhausted"
	case errors.As(err, &mferr):
		return ErrMalformedEvent.Code
	case errors.As(err, &serr):
		return ErrSchemaMismatch.Code
	case errors.As(err, &terr):
		return ErrClientGone.Code
	}
	return "unknown"
}
