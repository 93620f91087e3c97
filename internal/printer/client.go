// internal/printer/client.go
package printer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"kitchen-print-service/internal/command"
	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/receipt"
	"kitchen-print-service/internal/transport"
	"kitchen-print-service/internal/utils"
)

// ErrNotConnected is returned by Print when the client has no live connection
var ErrNotConnected = errors.New("printer is not connected")

// State is the connection state of a client
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateFailed       State = "FAILED"
)

// Status is a point-in-time snapshot of a client
type Status struct {
	ID          string              `json:"id"`
	Profile     model.DeviceProfile `json:"profile"`
	Address     string              `json:"address"`
	State       State               `json:"state"`
	Reason      string              `json:"reason,omitempty"`
	LastPrintAt *time.Time          `json:"last_print_at,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
	PrintCount  int64               `json:"print_count"`
	BytesSent   int64               `json:"bytes_sent"`
}

// Client binds one profile to one transport. Transport operations on a client
// never overlap.
type Client struct {
	id        string
	profile   model.DeviceProfile
	transport transport.Transport
	encoder   *command.Encoder
	logger    *utils.PrinterLogger
	events    EventHandler

	// held for the whole of Connect, Print and Disconnect
	opMutex sync.Mutex

	mutex       sync.RWMutex
	state       State
	reason      string
	lastPrintAt time.Time
	lastError   string
	printCount  int64
	bytesSent   int64
}

// NewClient creates a disconnected client. The profile must already be valid.
func NewClient(id string, profile model.DeviceProfile, tr transport.Transport, logger *zap.Logger, events EventHandler) (*Client, error) {
	encoder, err := command.NewProfileEncoder(profile)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		id:        id,
		profile:   profile,
		transport: tr,
		encoder:   encoder,
		logger:    utils.NewPrinterLogger(logger, id, string(profile.Transport), string(profile.CommandSet)),
		events:    events,
		state:     StateDisconnected,
	}, nil
}

// ID returns the caller-assigned identity
func (c *Client) ID() string {
	return c.id
}

// Profile returns the device profile
func (c *Client) Profile() model.DeviceProfile {
	return c.profile
}

// Connect opens the transport. A failure leaves the client in StateFailed
// with the reason recorded; the error is returned for the caller's benefit.
func (c *Client) Connect(ctx context.Context) error {
	c.opMutex.Lock()
	defer c.opMutex.Unlock()

	if c.State() == StateConnected && c.transport.IsOpen() {
		return nil
	}

	c.setState(StateConnecting, "")

	err := c.transport.Connect(ctx)
	c.logger.LogConnection("connect", err)
	if err != nil {
		c.mutex.Lock()
		c.state = StateFailed
		c.reason = err.Error()
		c.lastError = err.Error()
		c.mutex.Unlock()

		c.emit(EventConnectFailed)
		return err
	}

	c.mutex.Lock()
	c.state = StateConnected
	c.reason = ""
	c.lastError = ""
	c.mutex.Unlock()

	c.emit(EventConnected)
	return nil
}

// Print encodes the document for this printer's command set and sends it
func (c *Client) Print(ctx context.Context, doc receipt.Document) error {
	c.opMutex.Lock()
	defer c.opMutex.Unlock()

	if c.State() != StateConnected {
		c.recordPrintFailure(ErrNotConnected)
		return ErrNotConnected
	}

	data, err := c.encoder.Encode(doc)
	if err != nil {
		c.recordPrintFailure(err)
		return err
	}

	start := time.Now()
	err = c.transport.Send(ctx, data)
	c.logger.LogPrint(len(data), time.Since(start), err)
	if err != nil {
		if !c.transport.IsOpen() {
			// the transport dropped its device; a reconnect is required
			c.setState(StateFailed, err.Error())
		}
		c.recordPrintFailure(err)
		return err
	}

	c.mutex.Lock()
	c.lastPrintAt = time.Now()
	c.lastError = ""
	c.printCount++
	c.bytesSent += int64(len(data))
	c.mutex.Unlock()

	c.emit(EventPrinted)
	return nil
}

// Disconnect releases the transport. Safe to call in any state.
func (c *Client) Disconnect() {
	c.opMutex.Lock()
	defer c.opMutex.Unlock()

	wasDisconnected := c.State() == StateDisconnected

	c.transport.Disconnect()
	c.setState(StateDisconnected, "")

	if !wasDisconnected {
		c.logger.LogConnection("disconnect", nil)
		c.emit(EventDisconnected)
	}
}

// State returns the current connection state
func (c *Client) State() State {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.state
}

// LastError returns the last recorded failure, empty after a success
func (c *Client) LastError() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastError
}

// Status returns a snapshot of the client
func (c *Client) Status() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	status := Status{
		ID:         c.id,
		Profile:    c.profile,
		Address:    c.profile.Address(),
		State:      c.state,
		Reason:     c.reason,
		LastError:  c.lastError,
		PrintCount: c.printCount,
		BytesSent:  c.bytesSent,
	}
	if !c.lastPrintAt.IsZero() {
		at := c.lastPrintAt
		status.LastPrintAt = &at
	}
	return status
}

func (c *Client) setState(state State, reason string) {
	c.mutex.Lock()
	c.state = state
	c.reason = reason
	c.mutex.Unlock()
}

func (c *Client) recordPrintFailure(err error) {
	c.mutex.Lock()
	c.lastError = err.Error()
	c.mutex.Unlock()

	c.emit(EventPrintFailed)
}

func (c *Client) emit(eventType EventType) {
	if c.events == nil {
		return
	}
	c.events(Event{
		Type:      eventType,
		PrinterID: c.id,
		Status:    c.Status(),
		Timestamp: time.Now(),
	})
}
