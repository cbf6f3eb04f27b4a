// Package errors defines the failures reported by the remote collaborators
// that back the fetch and unique stages.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates that the client is not connected to NATS
	ErrNotConnected = errors.New("not connected to NATS")

	// ErrInvalidSubject indicates that no subject is configured for a request
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNoResponse indicates that no responder answered a request
	ErrNoResponse = errors.New("no response received")

	// ErrRemote indicates that the responder answered with an error
	ErrRemote = errors.New("remote error")

	// ErrBodyTooLarge indicates that a response exceeded the configured limit
	ErrBodyTooLarge = errors.New("response body too large")
)

// Error codes.
const (
	CodeNotConnected = "NOT_CONNECTED"
	CodeRequest      = "REQUEST_FAILED"
	CodeDecode       = "DECODE_FAILED"
	CodeRemote       = "REMOTE_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeClose        = "CLOSE_FAILED"
	CodePing         = "PING_FAILED"
)

// Error represents a structured collaborator error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new collaborator error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotConnected checks if an error is a not connected error
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
