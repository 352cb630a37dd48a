package errorsx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ReasonedError wraps an error with a reason code.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error {
	return e.Err
}

// New builds a reasoned error from a message.
func New(reason ReasonCode, format string, args ...any) error {
	return ReasonedError{Err: fmt.Errorf(format, args...), Reason: reason}
}

// Wrap attaches a reason code to an error (no-op if err is nil or already reasoned).
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Reason extracts a reason code from an error, if present.
func Reason(err error) ReasonCode {
	if err == nil {
		return ReasonUnknown
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason returns true if err contains the given reason code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

// FromTransport classifies an error returned by an HTTP round trip or a dial.
// Deadlines, cancellations and network errors are transport faults.
// Anything else keeps an existing reason or becomes ReasonUnknown.
func FromTransport(err error) error {
	if err == nil {
		return nil
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &nerr) {
		return Wrap(err, ReasonTransportFault)
	}
	return Wrap(err, ReasonUnknown)
}

// FromStatus maps a non-2xx HTTP status to a reasoned error.
func FromStatus(provider string, status int, body string) error {
	err := fmt.Errorf("%s: status %d: %s", provider, status, body)
	if status >= http.StatusInternalServerError {
		return ReasonedError{Err: err, Reason: ReasonTransportFault}
	}
	return ReasonedError{Err: err, Reason: ReasonUpstreamRejected}
}
