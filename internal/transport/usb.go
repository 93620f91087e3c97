// internal/transport/usb.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
)

// KnownPrinterVendors is the USB vendor allow-list of receipt printer makers
var KnownPrinterVendors = []uint16{
	0x04B8, // Seiko Epson
	0x0519, // Star Micronics
	0x1504, // Bixolon
	0x1D90, // Citizen
	0x0416, // Winbond (generic POS-58/80)
	0x0FE6, // ICS Advent (generic)
	0x28E9, // GD32 (generic)
}

// USBDevice is an opened printer with a claimed bulk-out endpoint
type USBDevice interface {
	Device
	VendorID() uint16
	ProductID() uint16
}

// USBDriver selects and opens USB printers
type USBDriver interface {
	Available() bool
	Request(ctx context.Context, vendors []uint16) (USBDevice, error)
}

// HostUSB is the USBDriver backed by libusb
type HostUSB struct{}

// Available reports whether libusb can be initialized on this host
func (HostUSB) Available() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	ctx := gousb.NewContext()
	ctx.Close()
	return true
}

// Request opens the first attached device whose vendor is in the list
func (HostUSB) Request(ctx context.Context, vendors []uint16) (USBDevice, error) {
	usbCtx := gousb.NewContext()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return containsVendor(vendors, uint16(desc.Vendor))
	})
	if err != nil && len(devices) == 0 {
		usbCtx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if len(devices) == 0 {
		usbCtx.Close()
		return nil, ErrDeviceNotSelected
	}

	// Close extra devices
	for i := 1; i < len(devices); i++ {
		devices[i].Close()
	}
	dev := devices[0]

	if err := ctx.Err(); err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, err
	}

	handle, err := claimBulkOut(usbCtx, dev)
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, err
	}
	return handle, nil
}

func claimBulkOut(usbCtx *gousb.Context, dev *gousb.Device) (*usbHandle, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("failed to enable kernel driver auto-detach: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction != gousb.EndpointDirectionOut || ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		out, err := intf.OutEndpoint(ep.Number)
		if err != nil {
			done()
			return nil, fmt.Errorf("failed to open out endpoint %d: %w", ep.Number, err)
		}
		return &usbHandle{
			ctx:     usbCtx,
			dev:     dev,
			release: done,
			out:     out,
		}, nil
	}

	done()
	return nil, fmt.Errorf("no bulk-out endpoint on %s:%s", dev.Desc.Vendor, dev.Desc.Product)
}

type usbHandle struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	release func()
	out     *gousb.OutEndpoint
}

func (h *usbHandle) Write(p []byte) (int, error) {
	return h.out.Write(p)
}

func (h *usbHandle) Close() error {
	h.release()
	err := h.dev.Close()
	h.ctx.Close()
	return err
}

func (h *usbHandle) VendorID() uint16 {
	return uint16(h.dev.Desc.Vendor)
}

func (h *usbHandle) ProductID() uint16 {
	return uint16(h.dev.Desc.Product)
}

func containsVendor(vendors []uint16, id uint16) bool {
	for _, v := range vendors {
		if v == id {
			return true
		}
	}
	return false
}

// USBTransport implements Transport for USB printers
type USBTransport struct {
	vendors        []uint16
	driver         USBDriver
	connectTimeout time.Duration
	sendTimeout    time.Duration
	logger         *zap.Logger

	mutex  sync.RWMutex
	device USBDevice
	isOpen bool
}

// NewUSBTransport creates a USB transport. A profile pinned to a vendor id only
// accepts that vendor; otherwise the known printer vendors are allowed.
func NewUSBTransport(profile model.DeviceProfile, driver USBDriver, opts Options) *USBTransport {
	vendors := KnownPrinterVendors
	if profile.USBVendorID != 0 {
		vendors = []uint16{profile.USBVendorID}
	}

	return &USBTransport{
		vendors:        vendors,
		driver:         driver,
		connectTimeout: opts.ConnectTimeout,
		sendTimeout:    opts.SendTimeout,
		logger:         opts.logger().With(zap.String("transport", "usb")),
	}
}

// Connect requests a device from the host and claims its bulk-out endpoint
func (ut *USBTransport) Connect(ctx context.Context) error {
	ut.mutex.Lock()
	defer ut.mutex.Unlock()

	if ut.isOpen {
		return nil
	}

	if !ut.driver.Available() {
		return newError(ErrUnsupported, model.TransportUSB, "connect", nil)
	}

	ut.logger.Info("Requesting USB printer", zap.Int("vendor_count", len(ut.vendors)))

	device, err := Call(ctx, ut.connectTimeout, func() (USBDevice, error) {
		return ut.driver.Request(ctx, ut.vendors)
	}, func(late USBDevice) {
		late.Close()
	})
	if err != nil {
		ut.logger.Error("Failed to open USB printer", zap.Error(err))
		if errors.Is(err, ErrDeviceNotSelected) && !IsTransportError(err) {
			return newError(ErrDeviceNotSelected, model.TransportUSB, "connect", nil)
		}
		return classify(model.TransportUSB, "connect", err)
	}

	ut.device = device
	ut.isOpen = true

	ut.logger.Info("USB printer opened successfully",
		zap.String("vendor_id", fmt.Sprintf("%04X", device.VendorID())),
		zap.String("product_id", fmt.Sprintf("%04X", device.ProductID())),
	)
	return nil
}

// Send writes the payload to the bulk-out endpoint
func (ut *USBTransport) Send(ctx context.Context, data []byte) error {
	ut.mutex.Lock()
	defer ut.mutex.Unlock()

	if !ut.isOpen || ut.device == nil {
		return newError(ErrIO, model.TransportUSB, "send", errNotConnected)
	}

	if err := write(ctx, ut.sendTimeout, ut.device, data); err != nil {
		err = classify(model.TransportUSB, "send", err)
		ut.logger.Error("USB write failed", zap.Error(err))
		if abandoned(err) {
			release(ut.device, ut.logger)
			ut.device = nil
			ut.isOpen = false
		}
		return err
	}

	ut.logger.Debug("USB write completed", zap.Int("bytes", len(data)))
	return nil
}

// Disconnect releases the device. Safe to call in any state.
func (ut *USBTransport) Disconnect() {
	ut.mutex.Lock()
	defer ut.mutex.Unlock()

	if !ut.isOpen || ut.device == nil {
		return
	}

	if err := ut.device.Close(); err != nil {
		ut.logger.Warn("Failed to close USB device", zap.Error(err))
	}
	ut.device = nil
	ut.isOpen = false

	ut.logger.Info("USB printer closed")
}

// IsOpen returns whether a device is claimed
func (ut *USBTransport) IsOpen() bool {
	ut.mutex.RLock()
	defer ut.mutex.RUnlock()
	return ut.isOpen && ut.device != nil
}

// Kind returns the transport kind
func (ut *USBTransport) Kind() model.TransportKind {
	return model.TransportUSB
}

// Vendors returns the vendor ids this transport accepts
func (ut *USBTransport) Vendors() []uint16 {
	return ut.vendors
}
