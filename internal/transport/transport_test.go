package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"kitchen-print-service/internal/model"
)

func testOptions(drivers Drivers) Options {
	return Options{
		Drivers:        drivers,
		ConnectTimeout: time.Second,
		SendTimeout:    time.Second,
	}
}

func serialProfile() model.DeviceProfile {
	return model.DeviceProfile{
		Transport:  model.TransportSerial,
		SerialPort: "/dev/ttyUSB0",
	}.WithDefaults()
}

func TestSerialConnectUses8N1AtProfileBaud(t *testing.T) {
	driver := &fakeSerial{device: &fakeDevice{}}
	profile := serialProfile()
	profile.BaudRate = 19200

	st := NewSerialTransport(profile, driver, testOptions(Drivers{}))
	require.NoError(t, st.Connect(context.Background()))

	assert.True(t, st.IsOpen())
	assert.Equal(t, "/dev/ttyUSB0", driver.path)
	assert.Equal(t, &serial.Mode{BaudRate: 19200, DataBits: 8, StopBits: serial.OneStopBit, Parity: serial.NoParity}, driver.mode)
}

func TestSerialDefaultBaud(t *testing.T) {
	assert.Equal(t, 9600, SerialMode(0).BaudRate)
}

func TestSerialSendAndDisconnect(t *testing.T) {
	device := &fakeDevice{}
	st := NewSerialTransport(serialProfile(), &fakeSerial{device: device}, testOptions(Drivers{}))

	require.NoError(t, st.Connect(context.Background()))
	require.NoError(t, st.Send(context.Background(), []byte("ticket")))
	assert.Equal(t, []byte("ticket"), device.Bytes())

	st.Disconnect()
	st.Disconnect()
	assert.False(t, st.IsOpen())
	assert.Equal(t, 1, device.Closed())
}

func TestSerialUnsupported(t *testing.T) {
	st := NewSerialTransport(serialProfile(), &fakeSerial{unavailable: true}, testOptions(Drivers{}))

	err := st.Connect(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, st.IsOpen())
}

func TestSerialOpenFailureIsIOError(t *testing.T) {
	st := NewSerialTransport(serialProfile(), &fakeSerial{openErr: errBoom}, testOptions(Drivers{}))

	err := st.Connect(context.Background())
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, errBoom)
}

func TestSerialConnectTimeoutClosesLatePort(t *testing.T) {
	device := &fakeDevice{}
	opts := testOptions(Drivers{})
	opts.ConnectTimeout = 20 * time.Millisecond

	st := NewSerialTransport(serialProfile(), &fakeSerial{device: device, delay: 200 * time.Millisecond}, opts)

	err := st.Connect(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, st.IsOpen())

	assert.Eventually(t, func() bool { return device.Closed() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSendTimeout(t *testing.T) {
	device := &fakeDevice{delay: 200 * time.Millisecond}
	opts := testOptions(Drivers{})
	opts.SendTimeout = 20 * time.Millisecond

	st := NewSerialTransport(serialProfile(), &fakeSerial{device: device}, opts)
	require.NoError(t, st.Connect(context.Background()))

	err := st.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendTimeoutDropsStalledDevice(t *testing.T) {
	tests := []struct {
		name string
		open func(dev *fakeDevice, opts Options) Transport
	}{
		{"serial", func(dev *fakeDevice, opts Options) Transport {
			return NewSerialTransport(serialProfile(), &fakeSerial{device: dev}, opts)
		}},
		{"usb", func(dev *fakeDevice, opts Options) Transport {
			driver := &fakeUSB{device: &fakeUSBDevice{fakeDevice: dev, vendor: 0x04B8}}
			return NewUSBTransport(model.GenericThermalProfile(), driver, opts)
		}},
		{"bluetooth", func(dev *fakeDevice, opts Options) Transport {
			driver := &fakeBluetooth{devices: []*fakeBluetoothDevice{{fakeDevice: dev, name: "rfcomm0"}}}
			return NewBluetoothTransport(model.DeviceProfile{Transport: model.TransportBluetooth}.WithDefaults(), driver, opts)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &fakeDevice{block: make(chan struct{})}
			opts := testOptions(Drivers{})
			opts.SendTimeout = 50 * time.Millisecond

			tr := tt.open(device, opts)
			require.NoError(t, tr.Connect(context.Background()))

			err := tr.Send(context.Background(), []byte("first"))
			assert.ErrorIs(t, err, ErrTimeout)
			assert.False(t, tr.IsOpen())

			err = tr.Send(context.Background(), []byte("second"))
			assert.ErrorIs(t, err, ErrIO)

			assert.Eventually(t, func() bool { return device.Closed() == 1 }, time.Second, 10*time.Millisecond)
			assert.EqualValues(t, 1, device.Writes())
			assert.EqualValues(t, 1, device.MaxInFlight())

			tr.Disconnect()
			assert.Equal(t, 1, device.Closed())
		})
	}
}

func TestSendRequiresConnection(t *testing.T) {
	st := NewSerialTransport(serialProfile(), &fakeSerial{device: &fakeDevice{}}, testOptions(Drivers{}))

	err := st.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestUSBConnectUsesAllowList(t *testing.T) {
	device := &fakeUSBDevice{fakeDevice: &fakeDevice{}, vendor: 0x04B8, product: 0x0202}
	driver := &fakeUSB{device: device}

	ut := NewUSBTransport(model.GenericThermalProfile(), driver, testOptions(Drivers{}))
	require.NoError(t, ut.Connect(context.Background()))
	assert.Equal(t, KnownPrinterVendors, driver.vendors)

	require.NoError(t, ut.Send(context.Background(), []byte{0x1B, 0x40}))
	assert.Equal(t, []byte{0x1B, 0x40}, device.Bytes())

	ut.Disconnect()
	assert.Equal(t, 1, device.Closed())
}

func TestUSBPinnedVendor(t *testing.T) {
	profile := model.GenericThermalProfile()
	profile.USBVendorID = 0x0519

	ut := NewUSBTransport(profile, &fakeUSB{}, testOptions(Drivers{}))
	assert.Equal(t, []uint16{0x0519}, ut.Vendors())
}

func TestUSBFailures(t *testing.T) {
	tests := []struct {
		name   string
		driver *fakeUSB
		want   error
	}{
		{"unsupported", &fakeUSB{unavailable: true}, ErrUnsupported},
		{"nothing selected", &fakeUSB{}, ErrDeviceNotSelected},
		{"unknown vendor", &fakeUSB{device: &fakeUSBDevice{fakeDevice: &fakeDevice{}, vendor: 0xFFFF}}, ErrDeviceNotSelected},
		{"enumeration failure", &fakeUSB{requestErr: errBoom}, ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ut := NewUSBTransport(model.GenericThermalProfile(), tt.driver, testOptions(Drivers{}))
			err := ut.Connect(context.Background())

			assert.ErrorIs(t, err, tt.want)
			assert.False(t, ut.IsOpen())

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, model.TransportUSB, te.Transport)
		})
	}
}

func TestBluetoothRequestsSerialPortService(t *testing.T) {
	printer := &fakeBluetoothDevice{fakeDevice: &fakeDevice{}, name: "/dev/rfcomm0"}
	driver := &fakeBluetooth{devices: []*fakeBluetoothDevice{printer}}

	bt := NewBluetoothTransport(model.DeviceProfile{Transport: model.TransportBluetooth}, driver, testOptions(Drivers{}))
	require.NoError(t, bt.Connect(context.Background()))
	assert.Equal(t, "00001101-0000-1000-8000-00805f9b34fb", driver.service.String())

	require.NoError(t, bt.Send(context.Background(), []byte("hi")))
	assert.Equal(t, []byte("hi"), printer.Bytes())

	bt.Disconnect()
	bt.Disconnect()
	assert.Equal(t, 1, printer.Closed())
}

func TestBluetoothFailures(t *testing.T) {
	profile := model.DeviceProfile{Transport: model.TransportBluetooth, DeviceHint: "kitchen"}

	bt := NewBluetoothTransport(profile, &fakeBluetooth{unavailable: true}, testOptions(Drivers{}))
	assert.ErrorIs(t, bt.Connect(context.Background()), ErrUnsupported)

	other := &fakeBluetoothDevice{fakeDevice: &fakeDevice{}, name: "bar"}
	bt = NewBluetoothTransport(profile, &fakeBluetooth{devices: []*fakeBluetoothDevice{other}}, testOptions(Drivers{}))
	assert.ErrorIs(t, bt.Connect(context.Background()), ErrDeviceNotSelected)
}

func TestHostBluetoothWithoutBoundPort(t *testing.T) {
	host := HostBluetooth{listPorts: func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true},
			{Name: "/dev/ttyS0"},
		}, nil
	}}
	assert.True(t, host.Available())

	_, err := host.Request(context.Background(), SerialPortService, "")
	assert.ErrorIs(t, err, ErrDeviceNotSelected)

	bt := NewBluetoothTransport(model.DeviceProfile{Transport: model.TransportBluetooth}, host, testOptions(Drivers{}))
	err = bt.Connect(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotSelected)
	assert.NotErrorIs(t, err, ErrUnsupported)
	assert.False(t, bt.IsOpen())
}

func TestHostBluetoothEnumerationFailure(t *testing.T) {
	host := HostBluetooth{listPorts: func() ([]*enumerator.PortDetails, error) {
		return nil, errBoom
	}}
	assert.False(t, host.Available())

	bt := NewBluetoothTransport(model.DeviceProfile{Transport: model.TransportBluetooth}, host, testOptions(Drivers{}))
	assert.ErrorIs(t, bt.Connect(context.Background()), ErrUnsupported)
}

func TestSelectPort(t *testing.T) {
	ports := []string{"/dev/rfcomm0", "/dev/rfcomm1"}

	assert.Equal(t, "/dev/rfcomm0", selectPort(ports, ""))
	assert.Equal(t, "/dev/rfcomm1", selectPort(ports, "RFCOMM1"))
	assert.Equal(t, "", selectPort(ports, "cu.Kitchen"))
	assert.Equal(t, "", selectPort(nil, ""))
}

func TestIsRFCOMM(t *testing.T) {
	assert.True(t, isRFCOMM("/dev/rfcomm0"))
	assert.True(t, isRFCOMM("/dev/cu.TM-m30-SerialPort"))
	assert.True(t, isRFCOMM("/dev/tty.Bluetooth-Incoming-Port"))
	assert.False(t, isRFCOMM("/dev/ttyUSB0"))
}

func TestNewSelectsVariant(t *testing.T) {
	drivers := Drivers{Serial: &fakeSerial{}, USB: &fakeUSB{}, Bluetooth: &fakeBluetooth{}}

	tests := []struct {
		kind model.TransportKind
		want interface{}
	}{
		{model.TransportSerial, &SerialTransport{}},
		{model.TransportUSB, &USBTransport{}},
		{model.TransportBluetooth, &BluetoothTransport{}},
		{model.TransportEthernet, &NetworkTransport{}},
		{model.TransportWiFi, &NetworkTransport{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			tr, err := New(model.DeviceProfile{Transport: tt.kind, IPAddress: "10.0.0.5"}, testOptions(drivers))
			require.NoError(t, err)
			assert.IsType(t, tt.want, tr)
			assert.Equal(t, tt.kind, tr.Kind())
		})
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(model.DeviceProfile{Transport: "CARRIER_PIGEON"}, testOptions(Drivers{}))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = New(model.DeviceProfile{Transport: model.TransportUSB}, testOptions(Drivers{}))
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestParseNetworkMode(t *testing.T) {
	mode, err := ParseNetworkMode("")
	require.NoError(t, err)
	assert.Equal(t, NetworkModeHTTP, mode)

	mode, err = ParseNetworkMode("raw")
	require.NoError(t, err)
	assert.Equal(t, NetworkModeRaw, mode)

	_, err = ParseNetworkMode("ipp")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
