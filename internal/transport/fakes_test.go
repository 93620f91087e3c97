package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"
)

type fakeDevice struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	delay    time.Duration
	writeErr error
	closed   int

	// block stalls every write until the device is closed
	block       chan struct{}
	writes      int32
	inFlight    int32
	maxInFlight int32
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	atomic.AddInt32(&d.writes, 1)
	n := atomic.AddInt32(&d.inFlight, 1)
	defer atomic.AddInt32(&d.inFlight, -1)
	for {
		max := atomic.LoadInt32(&d.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&d.maxInFlight, max, n) {
			break
		}
	}

	if d.block != nil {
		<-d.block
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	return d.buf.Write(p)
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	if d.block != nil && d.closed == 1 {
		close(d.block)
	}
	return nil
}

func (d *fakeDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buf.Bytes()...)
}

func (d *fakeDevice) Writes() int32 {
	return atomic.LoadInt32(&d.writes)
}

func (d *fakeDevice) MaxInFlight() int32 {
	return atomic.LoadInt32(&d.maxInFlight)
}

func (d *fakeDevice) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeSerial struct {
	unavailable bool
	openErr     error
	delay       time.Duration
	device      *fakeDevice

	mu   sync.Mutex
	path string
	mode *serial.Mode
}

func (f *fakeSerial) Available() bool {
	return !f.unavailable
}

func (f *fakeSerial) Open(path string, mode *serial.Mode) (Device, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.path = path
	f.mode = mode
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.device, nil
}

type fakeUSBDevice struct {
	*fakeDevice
	vendor  uint16
	product uint16
}

func (d *fakeUSBDevice) VendorID() uint16  { return d.vendor }
func (d *fakeUSBDevice) ProductID() uint16 { return d.product }

type fakeUSB struct {
	unavailable bool
	device      *fakeUSBDevice
	requestErr  error

	vendors []uint16
}

func (f *fakeUSB) Available() bool {
	return !f.unavailable
}

func (f *fakeUSB) Request(ctx context.Context, vendors []uint16) (USBDevice, error) {
	f.vendors = vendors
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	if f.device == nil || !containsVendor(vendors, f.device.vendor) {
		return nil, ErrDeviceNotSelected
	}
	return f.device, nil
}

type fakeBluetoothDevice struct {
	*fakeDevice
	name string
}

func (d *fakeBluetoothDevice) Name() string { return d.name }

type fakeBluetooth struct {
	unavailable bool
	devices     []*fakeBluetoothDevice

	service uuid.UUID
}

func (f *fakeBluetooth) Available() bool {
	return !f.unavailable
}

func (f *fakeBluetooth) Request(ctx context.Context, service uuid.UUID, hint string) (BluetoothDevice, error) {
	f.service = service
	for _, d := range f.devices {
		if hint == "" || d.name == hint {
			return d, nil
		}
	}
	return nil, ErrDeviceNotSelected
}

var errBoom = errors.New("boom")
