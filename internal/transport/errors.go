// internal/transport/errors.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"kitchen-print-service/internal/model"
)

// Error kinds, matched with errors.Is against a *TransportError
var (
	ErrUnsupported       = errors.New("capability not supported by host")
	ErrDeviceNotSelected = errors.New("no device selected")
	ErrIO                = errors.New("i/o failure")
	ErrTimeout           = errors.New("operation timed out")
)

var errNotConnected = errors.New("not connected")

// TransportError is a failure raised by a transport operation
type TransportError struct {
	Kind      error
	Transport model.TransportKind
	Op        string
	Err       error
}

func newError(kind error, transport model.TransportKind, op string, err error) *TransportError {
	return &TransportError{
		Kind:      kind,
		Transport: transport,
		Op:        op,
		Err:       err,
	}
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Transport, e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == e.Kind
}

// classify wraps err as a timeout when it came from a deadline, and as an
// I/O failure otherwise. Errors that are already transport errors pass through.
func classify(transport model.TransportKind, op string, err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrTimeout, transport, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrTimeout, transport, op, err)
	}

	return newError(ErrIO, transport, op, err)
}

// IsTransportError reports whether err carries a transport failure
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
