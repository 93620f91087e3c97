// internal/discovery/scanner.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/transport"
)

// DefaultDetectTimeout bounds a single auto-detect device request
const DefaultDetectTimeout = 10 * time.Second

// Detection is the outcome of AutoDetect
type Detection struct {
	Profile   model.DeviceProfile `json:"profile"`
	Matched   bool                `json:"matched"`
	VendorID  uint16              `json:"vendor_id,omitempty"`
	ProductID uint16              `json:"product_id,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// PortInfo describes a serial port visible to the host
type PortInfo struct {
	Name      string `json:"name"`
	IsUSB     bool   `json:"is_usb"`
	VendorID  string `json:"vendor_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Serial    string `json:"serial_number,omitempty"`
}

// Capabilities is the host transport report served to operators
type Capabilities struct {
	Transports  []model.TransportKind `json:"transports"`
	SerialPorts []PortInfo            `json:"serial_ports"`
}

// Prober inspects the host for usable transports and attachable printers
type Prober struct {
	drivers  transport.Drivers
	presets  *PresetDatabase
	logger   *zap.Logger
	timeout  time.Duration
	listPort func() ([]*enumerator.PortDetails, error)
}

// NewProber creates a prober over the given host drivers
func NewProber(drivers transport.Drivers, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		drivers:  drivers,
		presets:  NewPresetDatabase(),
		logger:   logger.With(zap.String("component", "discovery")),
		timeout:  DefaultDetectTimeout,
		listPort: enumerator.GetDetailedPortsList,
	}
}

// Presets returns the vendor preset database used by AutoDetect
func (p *Prober) Presets() *PresetDatabase {
	return p.presets
}

// ProbeCapabilities returns the transport kinds this host can use.
// Network kinds are always available.
func (p *Prober) ProbeCapabilities() []model.TransportKind {
	kinds := make([]model.TransportKind, 0, len(model.AllTransportKinds))
	for _, kind := range model.AllTransportKinds {
		if p.available(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func (p *Prober) available(kind model.TransportKind) bool {
	switch kind {
	case model.TransportSerial:
		return p.drivers.Serial != nil && p.drivers.Serial.Available()
	case model.TransportUSB:
		return p.drivers.USB != nil && p.drivers.USB.Available()
	case model.TransportBluetooth:
		return p.drivers.Bluetooth != nil && p.drivers.Bluetooth.Available()
	default:
		return kind.IsNetwork()
	}
}

// Capabilities returns the transport kinds together with the serial ports the host exposes
func (p *Prober) Capabilities() Capabilities {
	caps := Capabilities{
		Transports:  p.ProbeCapabilities(),
		SerialPorts: []PortInfo{},
	}

	ports, err := p.listPort()
	if err != nil {
		p.logger.Debug("Serial port enumeration failed", zap.Error(err))
		return caps
	}
	for _, port := range ports {
		caps.SerialPorts = append(caps.SerialPorts, PortInfo{
			Name:      port.Name,
			IsUSB:     port.IsUSB,
			VendorID:  port.VID,
			ProductID: port.PID,
			Serial:    port.SerialNumber,
		})
	}
	return caps
}

// AutoDetect requests a USB printer from the known vendor allow-list and
// returns the matching preset profile. When USB is unavailable, no device is
// found or the vendor has no preset, the generic thermal USB profile is
// returned instead. Network printers are never guessed.
func (p *Prober) AutoDetect(ctx context.Context) Detection {
	fallback := func(reason string) Detection {
		p.logger.Info("Auto-detect fell back to generic profile", zap.String("reason", reason))
		return Detection{Profile: model.GenericThermalProfile(), Reason: reason}
	}

	if p.drivers.USB == nil || !p.drivers.USB.Available() {
		return fallback("usb unsupported on this host")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	device, err := p.request(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrDeviceNotSelected) {
			return fallback("no known printer attached")
		}
		return fallback(err.Error())
	}
	vendorID, productID := device.VendorID(), device.ProductID()
	if err := device.Close(); err != nil {
		p.logger.Debug("Failed to release probed device", zap.Error(err))
	}

	profile, ok := p.presets.Match(vendorID, productID)
	if !ok {
		detection := fallback(fmt.Sprintf("no preset for vendor %04X", vendorID))
		detection.VendorID, detection.ProductID = vendorID, productID
		return detection
	}

	p.logger.Info("Printer detected",
		zap.String("vendor", profile.Vendor),
		zap.String("model", profile.Model),
		zap.String("vendor_id", fmt.Sprintf("%04X", vendorID)),
		zap.String("product_id", fmt.Sprintf("%04X", productID)),
	)
	return Detection{Profile: profile, Matched: true, VendorID: vendorID, ProductID: productID}
}

// request runs the driver request so that a hung host picker cannot outlive
// ctx. A device that turns up after ctx is done is closed.
func (p *Prober) request(ctx context.Context) (transport.USBDevice, error) {
	device, err := transport.Call(ctx, 0, func() (transport.USBDevice, error) {
		return p.drivers.USB.Request(ctx, transport.KnownPrinterVendors)
	}, func(late transport.USBDevice) {
		if late != nil {
			late.Close()
		}
	})
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("usb request: %w", err)
	}
	return device, err
}
