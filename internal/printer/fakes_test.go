package printer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/transport"
)

type fakeTransport struct {
	kind       model.TransportKind
	connectErr error
	sendErr    error
	sendDelay  time.Duration

	// dropOnErr closes the transport when a send fails
	dropOnErr bool

	mu          sync.Mutex
	open        bool
	sent        [][]byte
	connects    int
	disconnects int

	inFlight    int32
	maxInFlight int32
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}

	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		if f.dropOnErr {
			f.open = false
		}
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.disconnects++
	}
	f.open = false
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Kind() model.TransportKind {
	return f.kind
}

func (f *fakeTransport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *fakeTransport) Counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

// fakeFactory hands out transports keyed by the profile's DeviceHint
type fakeFactory struct {
	mu         sync.Mutex
	transports map[string]*fakeTransport
	created    []*fakeTransport
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{transports: make(map[string]*fakeTransport)}
}

func (f *fakeFactory) set(hint string, tr *fakeTransport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transports[hint] = tr
}

func (f *fakeFactory) factory() transport.Factory {
	return func(profile model.DeviceProfile) (transport.Transport, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		tr, ok := f.transports[profile.DeviceHint]
		if !ok {
			tr = &fakeTransport{kind: profile.Transport}
		}
		f.created = append(f.created, tr)
		return tr, nil
	}
}

func usbProfile(hint string) model.DeviceProfile {
	profile := model.GenericThermalProfile()
	profile.DeviceHint = hint
	return profile
}
