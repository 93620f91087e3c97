// internal/transport/serial.go
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
)

// SerialDriver opens serial ports on the host
type SerialDriver interface {
	Available() bool
	Open(path string, mode *serial.Mode) (Device, error)
}

// HostSerial is the SerialDriver backed by the operating system
type HostSerial struct{}

// Available reports whether the host can enumerate serial ports
func (HostSerial) Available() bool {
	_, err := serial.GetPortsList()
	return err == nil
}

// Open opens a port with the given mode
func (HostSerial) Open(path string, mode *serial.Mode) (Device, error) {
	return serial.Open(path, mode)
}

// SerialMode returns the 8N1 line settings at the given baud rate
func SerialMode(baudRate int) *serial.Mode {
	if baudRate <= 0 {
		baudRate = model.DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
}

// SerialTransport implements Transport for RS-232 printers
type SerialTransport struct {
	path           string
	baudRate       int
	driver         SerialDriver
	connectTimeout time.Duration
	sendTimeout    time.Duration
	logger         *zap.Logger

	mutex  sync.RWMutex
	port   Device
	isOpen bool
}

// NewSerialTransport creates a serial transport for a profile
func NewSerialTransport(profile model.DeviceProfile, driver SerialDriver, opts Options) *SerialTransport {
	return &SerialTransport{
		path:           profile.SerialPort,
		baudRate:       profile.BaudRate,
		driver:         driver,
		connectTimeout: opts.ConnectTimeout,
		sendTimeout:    opts.SendTimeout,
		logger: opts.logger().With(
			zap.String("transport", "serial"),
			zap.String("port", profile.SerialPort),
		),
	}
}

// Connect opens the serial port
func (st *SerialTransport) Connect(ctx context.Context) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.isOpen {
		return nil
	}

	if !st.driver.Available() {
		return newError(ErrUnsupported, model.TransportSerial, "connect", nil)
	}

	mode := SerialMode(st.baudRate)
	st.logger.Info("Opening serial port", zap.Int("baud_rate", mode.BaudRate))

	port, err := Call(ctx, st.connectTimeout, func() (Device, error) {
		return st.driver.Open(st.path, mode)
	}, func(late Device) {
		late.Close()
	})
	if err != nil {
		st.logger.Error("Failed to open serial port", zap.Error(err))
		return classify(model.TransportSerial, "connect", fmt.Errorf("failed to open serial port %s: %w", st.path, err))
	}

	st.port = port
	st.isOpen = true

	st.logger.Info("Serial port opened successfully")
	return nil
}

// Send writes the payload to the port
func (st *SerialTransport) Send(ctx context.Context, data []byte) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return newError(ErrIO, model.TransportSerial, "send", errNotConnected)
	}

	if err := write(ctx, st.sendTimeout, st.port, data); err != nil {
		err = classify(model.TransportSerial, "send", err)
		st.logger.Error("Serial write failed", zap.Error(err))
		if abandoned(err) {
			release(st.port, st.logger)
			st.port = nil
			st.isOpen = false
		}
		return err
	}

	st.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// Disconnect closes the port. Safe to call in any state.
func (st *SerialTransport) Disconnect() {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return
	}

	if err := st.port.Close(); err != nil {
		st.logger.Warn("Failed to close serial port", zap.Error(err))
	}
	st.port = nil
	st.isOpen = false

	st.logger.Info("Serial port closed")
}

// IsOpen returns whether the port is open
func (st *SerialTransport) IsOpen() bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.isOpen && st.port != nil
}

// Kind returns the transport kind
func (st *SerialTransport) Kind() model.TransportKind {
	return model.TransportSerial
}
