package printer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitchen-print-service/internal/command"
	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/receipt"
	"kitchen-print-service/internal/transport"
)

var ticket = receipt.Document{receipt.Text("1x Soup"), receipt.CutOp{Kind: receipt.CutFull}}

func newTestClient(t *testing.T, tr *fakeTransport, events EventHandler) *Client {
	t.Helper()
	client, err := NewClient("kitchen-1", model.GenericThermalProfile(), tr, zap.NewNop(), events)
	require.NoError(t, err)
	return client
}

func TestClientConnect(t *testing.T) {
	tr := &fakeTransport{kind: model.TransportUSB}
	client := newTestClient(t, tr, nil)

	assert.Equal(t, StateDisconnected, client.State())
	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, StateConnected, client.State())
	assert.Empty(t, client.LastError())

	// already connected
	require.NoError(t, client.Connect(context.Background()))
	connects, _ := tr.Counts()
	assert.Equal(t, 1, connects)
}

func TestClientConnectFailureIsRecorded(t *testing.T) {
	failure := &transport.TransportError{Kind: transport.ErrUnsupported, Transport: model.TransportUSB, Op: "connect"}
	client := newTestClient(t, &fakeTransport{connectErr: failure}, nil)

	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, transport.ErrUnsupported)

	status := client.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, failure.Error(), status.Reason)
	assert.Equal(t, failure.Error(), status.LastError)
}

func TestClientPrintRequiresConnection(t *testing.T) {
	tr := &fakeTransport{}
	client := newTestClient(t, tr, nil)

	err := client.Print(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, tr.Sent())
	assert.Equal(t, ErrNotConnected.Error(), client.LastError())
}

func TestClientPrintEncodesForFamily(t *testing.T) {
	tr := &fakeTransport{}
	profile := model.GenericThermalProfile()
	profile.CommandSet = model.FamilyStar

	client, err := NewClient("bar", profile, tr, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Print(context.Background(), ticket))

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.True(t, bytes.HasPrefix(sent[0], command.Star.Initialize))
	assert.True(t, bytes.HasSuffix(sent[0], command.Star.FullCut))

	status := client.Status()
	require.NotNil(t, status.LastPrintAt)
	assert.EqualValues(t, 1, status.PrintCount)
	assert.EqualValues(t, len(sent[0]), status.BytesSent)
}

func TestClientPrintFailureThenRecovery(t *testing.T) {
	tr := &fakeTransport{sendErr: errors.New("paper out")}
	client := newTestClient(t, tr, nil)
	require.NoError(t, client.Connect(context.Background()))

	err := client.Print(context.Background(), ticket)
	require.Error(t, err)
	assert.Equal(t, "paper out", client.LastError())
	assert.Nil(t, client.Status().LastPrintAt)
	assert.Equal(t, StateConnected, client.State())

	tr.mu.Lock()
	tr.sendErr = nil
	tr.mu.Unlock()

	require.NoError(t, client.Print(context.Background(), ticket))
	assert.Empty(t, client.LastError())
}

func TestClientFailsWhenTransportDropsDevice(t *testing.T) {
	tr := &fakeTransport{sendErr: errors.New("write timed out"), dropOnErr: true}
	client := newTestClient(t, tr, nil)
	require.NoError(t, client.Connect(context.Background()))

	require.Error(t, client.Print(context.Background(), ticket))
	assert.Equal(t, StateFailed, client.State())
	assert.Equal(t, "write timed out", client.Status().Reason)

	err := client.Print(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrNotConnected)

	tr.mu.Lock()
	tr.sendErr = nil
	tr.mu.Unlock()

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Print(context.Background(), ticket))
	assert.Equal(t, 2, tr.connects)
}

func TestClientRejectsEmptyDocument(t *testing.T) {
	tr := &fakeTransport{}
	client := newTestClient(t, tr, nil)
	require.NoError(t, client.Connect(context.Background()))

	err := client.Print(context.Background(), receipt.Document{})
	assert.ErrorIs(t, err, command.ErrEmptyDocument)
	assert.Empty(t, tr.Sent())
}

func TestClientDisconnectIsAlwaysSafe(t *testing.T) {
	tr := &fakeTransport{}
	client := newTestClient(t, tr, nil)

	client.Disconnect()
	client.Disconnect()
	assert.Equal(t, StateDisconnected, client.State())

	require.NoError(t, client.Connect(context.Background()))
	client.Disconnect()
	client.Disconnect()

	_, disconnects := tr.Counts()
	assert.Equal(t, 1, disconnects)
	assert.False(t, tr.IsOpen())
}

func TestClientSerializesPrints(t *testing.T) {
	tr := &fakeTransport{sendDelay: 20 * time.Millisecond}
	client := newTestClient(t, tr, nil)
	require.NoError(t, client.Connect(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Print(context.Background(), ticket))
		}()
	}
	wg.Wait()

	assert.Len(t, tr.Sent(), 5)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tr.maxInFlight))
}

func TestClientEmitsEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []EventType
	)
	handler := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}

	client := newTestClient(t, &fakeTransport{}, handler)
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Print(context.Background(), ticket))
	client.Disconnect()

	assert.Equal(t, []EventType{EventConnected, EventPrinted, EventDisconnected}, events)
}

func TestNewClientRejectsUnknownFamily(t *testing.T) {
	profile := model.GenericThermalProfile()
	profile.CommandSet = "ZPL"

	_, err := NewClient("x", profile, &fakeTransport{}, nil, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
