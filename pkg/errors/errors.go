package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the failure classes a harvest run can hit
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeStatus        ErrorType = "status"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeMalformedItem ErrorType = "malformed_item"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// bodyPreviewLimit caps how much of a response body is kept on a status error
const bodyPreviewLimit = 512

// Error represents a typed harvest error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	if e.Type == ErrorTypeStatus {
		return fmt.Sprintf("%s error (code %d): %s: %s", e.Type, e.Code, e.Message, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network wraps a connection-level failure where no response was received
func Network(err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: "request failed before a response was received", Err: err}
}

// Status reports a non-success HTTP response together with its body
func Status(code int, body []byte) *Error {
	preview := string(body)
	if len(preview) > bodyPreviewLimit {
		preview = preview[:bodyPreviewLimit] + "..."
	}
	return &Error{Type: ErrorTypeStatus, Message: "unexpected response status", Code: code, Body: preview}
}

// Parsing reports an undecodable response body
func Parsing(code int, err error) *Error {
	return &Error{Type: ErrorTypeParsing, Message: "failed to parse response", Code: code, Err: err}
}

// MalformedItem reports a single item that cannot be normalized
func MalformedItem(msg string, err error) *Error {
	return &Error{Type: ErrorTypeMalformedItem, Message: msg, Err: err}
}

// Storage wraps a persistence failure
func Storage(op string, err error) *Error {
	return &Error{Type: ErrorTypeStorage, Message: op, Err: err}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is untyped
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given ErrorType anywhere in its chain
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried.
// Only connection failures are transient; a response of any status is final.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}
