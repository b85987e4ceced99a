package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindUnsupportedAction  Kind = "UnsupportedAction"
	KindUnrecognizedAction Kind = "UnrecognizedAction"
	KindInvalidInput       Kind = "InvalidInput"
	KindUnauthorized       Kind = "Unauthorized"
	KindNotFound           Kind = "NotFound"
	KindAPI                Kind = "ApiError"
	KindTimeout            Kind = "Timeout"
	KindInternal           Kind = "Internal"
)

// AppError captures rich error context shared across transports.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(appErr *AppError) {
		appErr.cause = err
	}
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(appErr *AppError) {
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		appErr.details[key] = value
	}
}

// New constructs a new AppError with the supplied kind and message.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	appErr := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(appErr)
	}
	return appErr
}

// Error satisfies the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message returns the human-readable message.
func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns optional metadata about the error.
func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.kind {
	case KindUnsupportedAction, KindUnrecognizedAction, KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the error kind onto a gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if e == nil {
		return codes.Internal
	}
	switch e.kind {
	case KindUnsupportedAction:
		return codes.Unimplemented
	case KindUnrecognizedAction, KindInvalidInput:
		return codes.InvalidArgument
	case KindUnauthorized:
		return codes.Unauthenticated
	case KindNotFound:
		return codes.NotFound
	case KindAPI:
		return codes.Unavailable
	case KindTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// IsClientError reports whether retrying the same input can never succeed.
func (e *AppError) IsClientError() bool {
	status := e.StatusCode()
	return status >= 400 && status < 500
}

// UnsupportedAction constructs a 400 error for actions the handler knows but refuses.
func UnsupportedAction(message string, opts ...Option) *AppError {
	return New(KindUnsupportedAction, message, opts...)
}

// UnrecognizedAction constructs a 400 error for unknown actions.
func UnrecognizedAction(message string, opts ...Option) *AppError {
	return New(KindUnrecognizedAction, message, opts...)
}

// InvalidInput constructs a 400 error for malformed payloads.
func InvalidInput(message string, opts ...Option) *AppError {
	return New(KindInvalidInput, message, opts...)
}

// Unauthorized constructs a 401 error for callers without valid credentials.
func Unauthorized(message string, opts ...Option) *AppError {
	return New(KindUnauthorized, message, opts...)
}

// NotFound constructs a 404 error.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// API constructs a 500 error for failed calls to upstream services.
func API(message string, opts ...Option) *AppError {
	return New(KindAPI, message, opts...)
}

// Timeout constructs a 504 error for expired deadlines.
func Timeout(message string, opts ...Option) *AppError {
	return New(KindTimeout, message, opts...)
}

// Internal constructs a generic 500 error.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// From returns an AppError for any error input, wrapping unexpected values.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}
