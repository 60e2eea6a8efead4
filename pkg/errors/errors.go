package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a failure in the extraction pipeline
type ErrorType string

const (
	ErrorTypeInvalidDomain          ErrorType = "invalid_domain"
	ErrorTypeUnrecognizedFormat     ErrorType = "unrecognized_format"
	ErrorTypeStrategyFailure        ErrorType = "strategy_failure"
	ErrorTypeVideoNotFound          ErrorType = "video_not_found"
	ErrorTypeAllStrategiesExhausted ErrorType = "all_strategies_exhausted"
	ErrorTypeDownloadProtocol       ErrorType = "download_protocol_error"

	// Upstream HTTP failures reported by the Instagram client
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// User-facing messages. Only these ever reach an API response.
const (
	MsgURLRequired        = "URL is required"
	MsgVideoURLRequired   = "Video URL is required"
	MsgInvalidDomain      = "Invalid Link: This is not an Instagram URL."
	MsgUnrecognizedFormat = "Invalid Instagram URL format"
	MsgExhausted          = "Failed to extract reel info. This Reel may be private, restricted, or unavailable in your region."
	MsgDownloadProtocol   = "DOWNLOAD_PROTOCOL_ERROR: Failed to stream video from source."
)

// Error is a typed error carrying an optional upstream status code and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so errors.Is(err, &Error{Type: t}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a typed error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying cause
func Wrap(err error, t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithCode returns a copy of e carrying an HTTP status code
func (e *Error) WithCode(code int) *Error {
	c := *e
	c.Code = code
	return &c
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is untyped
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err has the given type anywhere in its chain
func Is(err error, t ErrorType) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Type == t
}

// CodeOf returns the status code carried by the first *Error in err's chain, or 0
func CodeOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// HTTPStatus maps an error type to the status the HTTP layer should answer with
func HTTPStatus(t ErrorType) int {
	switch t {
	case ErrorTypeInvalidDomain, ErrorTypeUnrecognizedFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to an API caller.
// Strategy-level detail is never exposed.
func PublicMessage(err error) string {
	switch TypeOf(err) {
	case ErrorTypeInvalidDomain:
		return MsgInvalidDomain
	case ErrorTypeUnrecognizedFormat:
		return MsgUnrecognizedFormat
	case ErrorTypeDownloadProtocol:
		return MsgDownloadProtocol
	default:
		return MsgExhausted
	}
}

// FromStatusCode classifies an upstream HTTP status
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
