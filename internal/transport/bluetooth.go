// internal/transport/bluetooth.go
package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
)

// SerialPortService is the Bluetooth Serial Port Profile service class
var SerialPortService = uuid.MustParse("00001101-0000-1000-8000-00805F9B34FB")

// BluetoothDevice is a connected RFCOMM channel to a printer
type BluetoothDevice interface {
	Device
	Name() string
}

// BluetoothDriver selects and connects Bluetooth printers
type BluetoothDriver interface {
	Available() bool
	Request(ctx context.Context, service uuid.UUID, hint string) (BluetoothDevice, error)
}

// HostBluetooth reaches paired printers through the RFCOMM serial ports the
// operating system binds for the serial port service.
type HostBluetooth struct {
	BaudRate int

	listPorts func() ([]*enumerator.PortDetails, error)
}

// Available reports whether the host can enumerate serial ports. Whether an
// RFCOMM port is bound is decided by Request.
func (h HostBluetooth) Available() bool {
	_, err := h.rfcommPorts()
	return err == nil
}

// Request opens the RFCOMM port matching hint, or the first one when hint is
// empty. It fails with ErrDeviceNotSelected when no such port is bound.
func (h HostBluetooth) Request(ctx context.Context, service uuid.UUID, hint string) (BluetoothDevice, error) {
	ports, err := h.rfcommPorts()
	if err != nil {
		return nil, err
	}

	name := selectPort(ports, hint)
	if name == "" {
		return nil, ErrDeviceNotSelected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.Open(name, SerialMode(h.BaudRate))
	if err != nil {
		return nil, err
	}
	return &rfcommDevice{Port: port, name: name}, nil
}

type rfcommDevice struct {
	serial.Port
	name string
}

func (d *rfcommDevice) Name() string {
	return d.name
}

func (h HostBluetooth) rfcommPorts() ([]string, error) {
	list := h.listPorts
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	details, err := list()
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, port := range details {
		if port.IsUSB {
			continue
		}
		if isRFCOMM(port.Name) {
			ports = append(ports, port.Name)
		}
	}
	return ports, nil
}

// isRFCOMM matches Linux rfcomm ttys and macOS Bluetooth serial ports
func isRFCOMM(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "rfcomm") ||
		strings.HasSuffix(lower, "-serialport") ||
		strings.Contains(lower, "bluetooth")
}

func selectPort(ports []string, hint string) string {
	if hint == "" {
		if len(ports) == 0 {
			return ""
		}
		return ports[0]
	}

	hint = strings.ToLower(hint)
	for _, port := range ports {
		if strings.Contains(strings.ToLower(port), hint) {
			return port
		}
	}
	return ""
}

// BluetoothTransport implements Transport for Bluetooth printers
type BluetoothTransport struct {
	hint           string
	driver         BluetoothDriver
	connectTimeout time.Duration
	sendTimeout    time.Duration
	logger         *zap.Logger

	mutex  sync.RWMutex
	device BluetoothDevice
	isOpen bool
}

// NewBluetoothTransport creates a Bluetooth transport for a profile
func NewBluetoothTransport(profile model.DeviceProfile, driver BluetoothDriver, opts Options) *BluetoothTransport {
	return &BluetoothTransport{
		hint:           profile.DeviceHint,
		driver:         driver,
		connectTimeout: opts.ConnectTimeout,
		sendTimeout:    opts.SendTimeout,
		logger: opts.logger().With(
			zap.String("transport", "bluetooth"),
			zap.String("service", SerialPortService.String()),
		),
	}
}

// Connect requests a printer offering the serial port service and connects to it
func (bt *BluetoothTransport) Connect(ctx context.Context) error {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if bt.isOpen {
		return nil
	}

	if !bt.driver.Available() {
		return newError(ErrUnsupported, model.TransportBluetooth, "connect", nil)
	}

	bt.logger.Info("Requesting Bluetooth printer", zap.String("hint", bt.hint))

	device, err := Call(ctx, bt.connectTimeout, func() (BluetoothDevice, error) {
		return bt.driver.Request(ctx, SerialPortService, bt.hint)
	}, func(late BluetoothDevice) {
		late.Close()
	})
	if err != nil {
		bt.logger.Error("Failed to connect Bluetooth printer", zap.Error(err))
		if errors.Is(err, ErrDeviceNotSelected) && !IsTransportError(err) {
			return newError(ErrDeviceNotSelected, model.TransportBluetooth, "connect", nil)
		}
		return classify(model.TransportBluetooth, "connect", err)
	}

	bt.device = device
	bt.isOpen = true

	bt.logger.Info("Bluetooth printer connected", zap.String("device", device.Name()))
	return nil
}

// Send writes the payload to the RFCOMM channel
func (bt *BluetoothTransport) Send(ctx context.Context, data []byte) error {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if !bt.isOpen || bt.device == nil {
		return newError(ErrIO, model.TransportBluetooth, "send", errNotConnected)
	}

	if err := write(ctx, bt.sendTimeout, bt.device, data); err != nil {
		err = classify(model.TransportBluetooth, "send", err)
		bt.logger.Error("Bluetooth write failed", zap.Error(err))
		if abandoned(err) {
			release(bt.device, bt.logger)
			bt.device = nil
			bt.isOpen = false
		}
		return err
	}

	bt.logger.Debug("Bluetooth write completed", zap.Int("bytes", len(data)))
	return nil
}

// Disconnect closes the channel. Safe to call in any state.
func (bt *BluetoothTransport) Disconnect() {
	bt.mutex.Lock()
	defer bt.mutex.Unlock()

	if !bt.isOpen || bt.device == nil {
		return
	}

	if err := bt.device.Close(); err != nil {
		bt.logger.Warn("Failed to close Bluetooth device", zap.Error(err))
	}
	bt.device = nil
	bt.isOpen = false

	bt.logger.Info("Bluetooth printer disconnected")
}

// IsOpen returns whether a device is connected
func (bt *BluetoothTransport) IsOpen() bool {
	bt.mutex.RLock()
	defer bt.mutex.RUnlock()
	return bt.isOpen && bt.device != nil
}

// Kind returns the transport kind
func (bt *BluetoothTransport) Kind() model.TransportKind {
	return model.TransportBluetooth
}
