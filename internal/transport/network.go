// internal/transport/network.go
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
)

// NetworkMode selects how bytes reach a network printer
type NetworkMode string

const (
	// NetworkModeHTTP posts the payload to http://ip:port
	NetworkModeHTTP NetworkMode = "http"
	// NetworkModeRaw writes the payload to a plain TCP socket on ip:port
	NetworkModeRaw NetworkMode = "raw"
)

const rawContentType = "application/octet-stream"

// NetworkTransport implements Transport for Ethernet and WiFi printers. There is
// no persistent connection: every Send performs its own network write.
type NetworkTransport struct {
	kind        model.TransportKind
	host        string
	port        int
	mode        NetworkMode
	client      *http.Client
	sendTimeout time.Duration
	logger      *zap.Logger

	mutex  sync.RWMutex
	isOpen bool
}

// NewNetworkTransport creates a network transport for a profile
func NewNetworkTransport(profile model.DeviceProfile, opts Options) *NetworkTransport {
	port := profile.Port
	if port == 0 {
		port = model.DefaultNetworkPort
	}
	mode := opts.NetworkMode
	if mode == "" {
		mode = NetworkModeHTTP
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &NetworkTransport{
		kind:        profile.Transport,
		host:        profile.IPAddress,
		port:        port,
		mode:        mode,
		client:      client,
		sendTimeout: opts.SendTimeout,
		logger: opts.logger().With(
			zap.String("transport", "network"),
			zap.String("host", profile.IPAddress),
			zap.Int("port", port),
			zap.String("mode", string(mode)),
		),
	}
}

// Address returns host:port
func (nt *NetworkTransport) Address() string {
	return net.JoinHostPort(nt.host, strconv.Itoa(nt.port))
}

// URL returns the HTTP endpoint used in http mode
func (nt *NetworkTransport) URL() string {
	return "http://" + nt.Address()
}

// Connect only checks that the printer is addressable
func (nt *NetworkTransport) Connect(ctx context.Context) error {
	nt.mutex.Lock()
	defer nt.mutex.Unlock()

	if nt.host == "" {
		return newError(ErrIO, nt.kind, "connect", fmt.Errorf("no IP address configured"))
	}
	if err := ctx.Err(); err != nil {
		return classify(nt.kind, "connect", err)
	}

	nt.isOpen = true
	nt.logger.Debug("Network printer ready")
	return nil
}

// Send delivers the payload in one request
func (nt *NetworkTransport) Send(ctx context.Context, data []byte) error {
	nt.mutex.RLock()
	open := nt.isOpen
	nt.mutex.RUnlock()

	if !open {
		return newError(ErrIO, nt.kind, "send", errNotConnected)
	}

	if nt.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nt.sendTimeout)
		defer cancel()
	}

	var err error
	switch nt.mode {
	case NetworkModeRaw:
		err = nt.sendRaw(ctx, data)
	default:
		err = nt.sendHTTP(ctx, data)
	}
	if err != nil {
		nt.logger.Error("Network send failed", zap.Error(err))
		return classify(nt.kind, "send", err)
	}

	nt.logger.Debug("Network send completed", zap.Int("bytes", len(data)))
	return nil
}

func (nt *NetworkTransport) sendHTTP(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nt.URL(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build print request: %w", err)
	}
	req.Header.Set("Content-Type", rawContentType)

	resp, err := nt.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", nt.URL(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(ErrIO, nt.kind, "send", fmt.Errorf("printer responded %s", resp.Status))
	}
	return nil
}

func (nt *NetworkTransport) sendRaw(ctx context.Context, data []byte) error {
	dialer := &net.Dialer{
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", nt.Address())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", nt.Address(), err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}

	n, err := conn.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", nt.Address(), err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// Disconnect marks the transport closed. Safe to call in any state.
func (nt *NetworkTransport) Disconnect() {
	nt.mutex.Lock()
	defer nt.mutex.Unlock()
	nt.isOpen = false
}

// IsOpen returns whether Connect has succeeded
func (nt *NetworkTransport) IsOpen() bool {
	nt.mutex.RLock()
	defer nt.mutex.RUnlock()
	return nt.isOpen
}

// Kind returns ETHERNET or WIFI, as configured
func (nt *NetworkTransport) Kind() model.TransportKind {
	return nt.kind
}
