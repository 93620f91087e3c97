package discovery

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/transport"
)

type stubSerial struct{ available bool }

func (s stubSerial) Available() bool { return s.available }
func (s stubSerial) Open(string, *serial.Mode) (transport.Device, error) {
	return nil, errors.New("not used")
}

type stubBluetooth struct{ available bool }

func (s stubBluetooth) Available() bool { return s.available }
func (s stubBluetooth) Request(context.Context, uuid.UUID, string) (transport.BluetoothDevice, error) {
	return nil, transport.ErrDeviceNotSelected
}

type stubUSBDevice struct {
	bytes.Buffer
	vendor, product uint16

	mu     sync.Mutex
	closed bool
}

func (d *stubUSBDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *stubUSBDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *stubUSBDevice) VendorID() uint16  { return d.vendor }
func (d *stubUSBDevice) ProductID() uint16 { return d.product }

type stubUSB struct {
	unavailable bool
	device      *stubUSBDevice
	err         error
	delay       time.Duration

	vendors []uint16
}

func (s *stubUSB) Available() bool { return !s.unavailable }

func (s *stubUSB) Request(ctx context.Context, vendors []uint16) (transport.USBDevice, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.vendors = vendors
	if s.err != nil {
		return nil, s.err
	}
	if s.device == nil {
		return nil, transport.ErrDeviceNotSelected
	}
	return s.device, nil
}

func TestProbeCapabilitiesAlwaysIncludesNetwork(t *testing.T) {
	prober := NewProber(transport.Drivers{}, nil)
	assert.Equal(t, []model.TransportKind{model.TransportEthernet, model.TransportWiFi}, prober.ProbeCapabilities())
}

func TestProbeCapabilitiesReportsAvailableDrivers(t *testing.T) {
	prober := NewProber(transport.Drivers{
		Serial:    stubSerial{available: true},
		USB:       &stubUSB{unavailable: true},
		Bluetooth: stubBluetooth{available: true},
	}, nil)

	assert.Equal(t, []model.TransportKind{
		model.TransportSerial,
		model.TransportBluetooth,
		model.TransportEthernet,
		model.TransportWiFi,
	}, prober.ProbeCapabilities())
}

func TestCapabilitiesListsSerialPorts(t *testing.T) {
	prober := NewProber(transport.Drivers{}, nil)
	prober.listPort = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0416", PID: "5011"},
			{Name: "/dev/ttyS0"},
		}, nil
	}

	caps := prober.Capabilities()
	require.Len(t, caps.SerialPorts, 2)
	assert.Equal(t, "/dev/ttyUSB0", caps.SerialPorts[0].Name)
	assert.True(t, caps.SerialPorts[0].IsUSB)
	assert.Equal(t, "0416", caps.SerialPorts[0].VendorID)
	assert.Contains(t, caps.Transports, model.TransportEthernet)
}

func TestCapabilitiesToleratesEnumerationFailure(t *testing.T) {
	prober := NewProber(transport.Drivers{}, nil)
	prober.listPort = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	}

	caps := prober.Capabilities()
	assert.NotNil(t, caps.SerialPorts)
	assert.Empty(t, caps.SerialPorts)
}

func TestAutoDetectMatchesPreset(t *testing.T) {
	tests := []struct {
		name    string
		vendor  uint16
		product uint16
		family  model.CommandFamily
		vendorS string
		model   string
	}{
		{"epson known product", 0x04B8, 0x0202, model.FamilyESCPOS, "Epson", "TM-T88IV"},
		{"epson unknown product", 0x04B8, 0x9999, model.FamilyESCPOS, "Epson", "TM-T88"},
		{"star", 0x0519, 0x0001, model.FamilyStar, "Star", "TSP143III"},
		{"generic board", 0x0416, 0x5011, model.FamilyESCPOS, "Generic", "POS-58"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &stubUSBDevice{vendor: tt.vendor, product: tt.product}
			usb := &stubUSB{device: device}
			prober := NewProber(transport.Drivers{USB: usb}, nil)

			detection := prober.AutoDetect(context.Background())

			assert.True(t, detection.Matched)
			assert.Equal(t, tt.vendor, detection.VendorID)
			assert.Equal(t, model.TransportUSB, detection.Profile.Transport)
			assert.Equal(t, tt.family, detection.Profile.CommandSet)
			assert.Equal(t, tt.vendorS, detection.Profile.Vendor)
			assert.Equal(t, tt.model, detection.Profile.Model)
			assert.Equal(t, tt.vendor, detection.Profile.USBVendorID)
			assert.NoError(t, detection.Profile.Validate())
			assert.Equal(t, transport.KnownPrinterVendors, usb.vendors)
			assert.True(t, device.Closed())
		})
	}
}

func TestAutoDetectFallsBackToGenericProfile(t *testing.T) {
	tests := []struct {
		name string
		usb  transport.USBDriver
	}{
		{"no usb driver", nil},
		{"usb unavailable", &stubUSB{unavailable: true}},
		{"nothing selected", &stubUSB{}},
		{"request failure", &stubUSB{err: errors.New("access denied")}},
		{"vendor without preset", &stubUSB{device: &stubUSBDevice{vendor: 0xBEEF}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := NewProber(transport.Drivers{USB: tt.usb}, nil)
			detection := prober.AutoDetect(context.Background())

			assert.False(t, detection.Matched)
			assert.NotEmpty(t, detection.Reason)
			assert.Equal(t, model.GenericThermalProfile(), detection.Profile)
			assert.Empty(t, detection.Profile.IPAddress)
		})
	}
}

func TestAutoDetectTimesOut(t *testing.T) {
	device := &stubUSBDevice{vendor: 0x04B8}
	prober := NewProber(transport.Drivers{USB: &stubUSB{device: device, delay: 200 * time.Millisecond}}, nil)
	prober.timeout = 20 * time.Millisecond

	detection := prober.AutoDetect(context.Background())
	assert.False(t, detection.Matched)
	assert.Contains(t, detection.Reason, "deadline exceeded")

	assert.Eventually(t, device.Closed, time.Second, 10*time.Millisecond)
}

func TestAutoDetectStopsWhenCallerCancels(t *testing.T) {
	device := &stubUSBDevice{vendor: 0x0519}
	prober := NewProber(transport.Drivers{USB: &stubUSB{device: device, delay: 200 * time.Millisecond}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	detection := prober.AutoDetect(ctx)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.False(t, detection.Matched)
	assert.Contains(t, detection.Reason, "context canceled")

	assert.Eventually(t, device.Closed, time.Second, 10*time.Millisecond)
}

func TestPresetsCoverVendorAllowList(t *testing.T) {
	db := NewPresetDatabase()
	assert.ElementsMatch(t, transport.KnownPrinterVendors, db.Vendors())

	for _, id := range db.Vendors() {
		preset, ok := db.Lookup(id)
		require.True(t, ok)
		assert.NoError(t, preset.Profile.Validate(), "preset %04X", id)
	}
}

func TestPresetDatabaseAddPreset(t *testing.T) {
	db := NewPresetDatabase()
	assert.False(t, db.IsKnownVendor(0x1234))

	db.AddPreset(&Preset{VendorID: 0x1234, Name: "Acme", Profile: usbPreset("Acme", "K1", model.FamilyESCPOS, 42)})

	profile, ok := db.Match(0x1234, 0x0001)
	require.True(t, ok)
	assert.Equal(t, "K1", profile.Model)
	assert.Equal(t, uint16(0x1234), profile.USBVendorID)
	assert.Equal(t, 42, profile.PaperWidth)
}
