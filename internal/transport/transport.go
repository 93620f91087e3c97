// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
)

// Default operation bounds
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultSendTimeout    = 15 * time.Second
)

// Transport owns exactly one connection to one printer
type Transport interface {
	// Connection lifecycle
	Connect(ctx context.Context) error
	Disconnect()
	IsOpen() bool

	// Data communication
	Send(ctx context.Context, data []byte) error

	// Transport information
	Kind() model.TransportKind
}

// Device is an opened handle to a physical printer
type Device interface {
	io.Writer
	io.Closer
}

// Call runs fn on its own goroutine and gives up when ctx is done or the
// timeout elapses. A result that arrives after giving up is handed to late so
// the caller can release what fn acquired.
func Call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error), late func(T)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if late != nil {
			go func() {
				res := <-done
				if res.err == nil {
					late(res.value)
				}
			}()
		}
		var zero T
		return zero, ctx.Err()
	}
}

// write sends data to a device with a bound and checks for short writes
func write(ctx context.Context, timeout time.Duration, dev Device, data []byte) error {
	_, err := Call(ctx, timeout, func() (struct{}, error) {
		n, err := dev.Write(data)
		if err != nil {
			return struct{}{}, err
		}
		if n != len(data) {
			return struct{}{}, fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
		}
		return struct{}{}, nil
	}, nil)
	return err
}

// abandoned reports whether a failed write may still be running on the
// device. Such a device must not be written again.
func abandoned(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// release closes an abandoned device. Close runs on its own goroutine since
// it may block until the stalled write returns.
func release(dev Device, logger *zap.Logger) {
	go func() {
		if err := dev.Close(); err != nil {
			logger.Warn("Failed to close abandoned device", zap.Error(err))
			return
		}
		logger.Info("Abandoned device closed")
	}()
}
