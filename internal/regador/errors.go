package regador

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/sony/gobreaker"
)

// TransportKind classifies a failure that happened before any HTTP status
// was received.
type TransportKind string

const (
	KindConnectionRefused TransportKind = "connection-refused"
	KindTimeout           TransportKind = "timeout"
	KindRequest           TransportKind = "request"
)

// TransportError wraps a network-level failure.
type TransportError struct {
	Kind TransportKind
	Op   string // e.g. "POST /sensors"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is returned when the API answered with an unexpected status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// MalformedResponseError is returned when the body is not JSON or a
// required field is missing.
type MalformedResponseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// classify maps a client.Do error onto a TransportKind.
func classify(err error) TransportKind {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindRequest
}

func transportErr(op string, err error) *TransportError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransportError{Kind: KindRequest, Op: op, Err: err}
	}
	return &TransportError{Kind: classify(err), Op: op, Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError and returns it.
func IsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
