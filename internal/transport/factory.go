// internal/transport/factory.go
package transport

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
)

// Drivers bundles the host discovery strategies used by the device transports
type Drivers struct {
	Serial    SerialDriver
	USB       USBDriver
	Bluetooth BluetoothDriver
}

// HostDrivers returns the drivers backed by the operating system
func HostDrivers() Drivers {
	return Drivers{
		Serial:    HostSerial{},
		USB:       HostUSB{},
		Bluetooth: HostBluetooth{BaudRate: model.DefaultBaudRate},
	}
}

// Options configures transports created by New
type Options struct {
	Drivers        Drivers
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	NetworkMode    NetworkMode
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// DefaultOptions returns host drivers with the default timeouts
func DefaultOptions(logger *zap.Logger) Options {
	return Options{
		Drivers:        HostDrivers(),
		ConnectTimeout: DefaultConnectTimeout,
		SendTimeout:    DefaultSendTimeout,
		NetworkMode:    NetworkModeHTTP,
		Logger:         logger,
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Factory creates transports for profiles
type Factory func(profile model.DeviceProfile) (Transport, error)

// NewFactory returns a Factory bound to opts
func NewFactory(opts Options) Factory {
	return func(profile model.DeviceProfile) (Transport, error) {
		return New(profile, opts)
	}
}

// New creates the transport variant for the profile's transport kind
func New(profile model.DeviceProfile, opts Options) (Transport, error) {
	switch {
	case profile.Transport == model.TransportSerial:
		if opts.Drivers.Serial == nil {
			return nil, model.NewConfigurationError("transport", "no serial driver configured")
		}
		return NewSerialTransport(profile, opts.Drivers.Serial, opts), nil
	case profile.Transport == model.TransportUSB:
		if opts.Drivers.USB == nil {
			return nil, model.NewConfigurationError("transport", "no USB driver configured")
		}
		return NewUSBTransport(profile, opts.Drivers.USB, opts), nil
	case profile.Transport == model.TransportBluetooth:
		if opts.Drivers.Bluetooth == nil {
			return nil, model.NewConfigurationError("transport", "no Bluetooth driver configured")
		}
		return NewBluetoothTransport(profile, opts.Drivers.Bluetooth, opts), nil
	case profile.Transport.IsNetwork():
		return NewNetworkTransport(profile, opts), nil
	default:
		return nil, model.NewConfigurationError("transport", "unsupported transport kind %q", profile.Transport)
	}
}

// ParseNetworkMode validates a network mode name
func ParseNetworkMode(s string) (NetworkMode, error) {
	switch NetworkMode(s) {
	case "", NetworkModeHTTP:
		return NetworkModeHTTP, nil
	case NetworkModeRaw:
		return NetworkModeRaw, nil
	default:
		return "", model.NewConfigurationError("network_mode", "unknown network mode %q", s)
	}
}
