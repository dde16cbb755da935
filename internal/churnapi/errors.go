package churnapi

import (
	"errors"
	"fmt"
)

// NetworkError means no HTTP response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Detail carries the body's "detail" field when present.
type ServerError struct {
	Op     string
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: server error %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: server error %d", e.Op, e.Status)
}

// ParseError means a 2xx body could not be decoded or failed validation.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UserMessage picks the operator-facing text for a failed call: the server's
// detail when one was sent, a generic server message for parse failures,
// and fallback otherwise.
func UserMessage(err error, fallback string) string {
	var se *ServerError
	if errors.As(err, &se) {
		if se.Detail != "" {
			return se.Detail
		}
		return fmt.Sprintf("Server error: %d", se.Status)
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return "The server returned an unreadable response."
	}
	return fallback
}
