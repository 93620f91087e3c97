// internal/printer/registry.go
package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/receipt"
	"kitchen-print-service/internal/transport"
	"kitchen-print-service/internal/utils"
)

// Result is the outcome of one fan-out operation on one printer
type Result struct {
	PrinterID string `json:"printer_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

func newResult(id string, err error) Result {
	if err != nil {
		return Result{PrinterID: id, Err: err, Error: err.Error()}
	}
	return Result{PrinterID: id, Success: true}
}

// Failed counts unsuccessful results
func Failed(results []Result) int {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return failed
}

// Errors combines the failures of a fan-out into one error, nil when all succeeded
func Errors(results []Result) error {
	var err error
	for _, r := range results {
		if r.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", r.PrinterID, r.Err))
		}
	}
	return err
}

// Registry owns a set of named printer clients
type Registry struct {
	factory        transport.Factory
	logger         *zap.Logger
	events         EventHandler
	maxConcurrency int

	mutex   sync.RWMutex
	clients map[string]*Client
	order   []string
}

// Option configures a Registry
type Option func(*Registry)

// WithEventHandler forwards client events to handler
func WithEventHandler(handler EventHandler) Option {
	return func(r *Registry) {
		r.events = handler
	}
}

// WithMaxConcurrency bounds the number of printers driven at once; zero means all
func WithMaxConcurrency(n int) Option {
	return func(r *Registry) {
		r.maxConcurrency = n
	}
}

// NewRegistry creates an empty registry that builds transports with factory
func NewRegistry(factory transport.Factory, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		factory: factory,
		logger:  logger.With(zap.String("component", "registry")),
		clients: make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a printer under id. An existing client with the same id is
// disconnected and replaced, keeping its position in the registration order.
func (r *Registry) Add(id string, profile model.DeviceProfile) (*Client, error) {
	if id == "" {
		return nil, model.NewConfigurationError("id", "printer id is required")
	}

	profile = profile.WithDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	tr, err := r.factory(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	client, err := NewClient(id, profile, tr, r.logger, r.events)
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	previous, exists := r.clients[id]
	r.clients[id] = client
	if !exists {
		r.order = append(r.order, id)
	}
	r.mutex.Unlock()

	if exists {
		r.logger.Info("Replacing printer", zap.String("printer_id", id))
		previous.Disconnect()
	}

	r.logger.Info("Printer registered",
		zap.String("printer_id", id),
		zap.String("transport", string(profile.Transport)),
		zap.String("address", profile.Address()),
	)
	client.emit(EventAdded)

	return client, nil
}

// Remove disconnects and unregisters a printer
func (r *Registry) Remove(id string) error {
	r.mutex.Lock()
	client, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
		for i, existing := range r.order {
			if existing == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mutex.Unlock()

	if !ok {
		return &model.NotFoundError{PrinterID: id}
	}

	client.Disconnect()
	client.emit(EventRemoved)
	r.logger.Info("Printer removed", zap.String("printer_id", id))
	return nil
}

// Get returns the client registered under id
func (r *Registry) Get(id string) (*Client, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, &model.NotFoundError{PrinterID: id}
	}
	return client, nil
}

// IDs returns the registered ids in registration order
func (r *Registry) IDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered printers
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.order)
}

// Statuses returns a snapshot of every client in registration order
func (r *Registry) Statuses() []Status {
	clients := r.snapshot()
	statuses := make([]Status, len(clients))
	for i, client := range clients {
		statuses[i] = client.Status()
	}
	return statuses
}

// ConnectAll connects every printer concurrently
func (r *Registry) ConnectAll(ctx context.Context) []Result {
	return r.fanOut(ctx, "connect_all", func(ctx context.Context, c *Client) error {
		return c.Connect(ctx)
	})
}

// ConnectOne connects a single printer
func (r *Registry) ConnectOne(ctx context.Context, id string) (Result, error) {
	client, err := r.Get(id)
	if err != nil {
		return Result{}, err
	}
	return newResult(id, client.Connect(ctx)), nil
}

// PrintToAll prints the document on every printer concurrently
func (r *Registry) PrintToAll(ctx context.Context, doc receipt.Document) []Result {
	return r.fanOut(ctx, "print_all", func(ctx context.Context, c *Client) error {
		return c.Print(ctx, doc)
	})
}

// PrintToSpecific prints on one printer. An unknown id fails with a
// NotFoundError before any I/O.
func (r *Registry) PrintToSpecific(ctx context.Context, id string, doc receipt.Document) (Result, error) {
	client, err := r.Get(id)
	if err != nil {
		return Result{}, err
	}
	return newResult(id, client.Print(ctx, doc)), nil
}

// DisconnectAll disconnects every printer. It never fails.
func (r *Registry) DisconnectAll() {
	r.fanOut(context.Background(), "disconnect_all", func(_ context.Context, c *Client) error {
		c.Disconnect()
		return nil
	})
}

func (r *Registry) snapshot() []*Client {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	clients := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		clients = append(clients, r.clients[id])
	}
	return clients
}

// fanOut runs op on every client and joins. Results follow registration
// order. Once ctx is done no further clients are started, but operations
// already running are not interrupted.
func (r *Registry) fanOut(ctx context.Context, operation string, op func(context.Context, *Client) error) []Result {
	clients := r.snapshot()
	if len(clients) == 0 {
		return []Result{}
	}

	opLogger := utils.NewOperationLogger(r.logger, operation, uuid.NewString())
	opLogger.Start(zap.Int("printers", len(clients)))

	workers := r.maxConcurrency
	if workers <= 0 || workers > len(clients) {
		workers = len(clients)
	}

	detached := context.WithoutCancel(ctx)
	mapper := iter.Mapper[*Client, Result]{MaxGoroutines: workers}

	results := mapper.Map(clients, func(c **Client) Result {
		client := *c
		if err := ctx.Err(); err != nil {
			return newResult(client.ID(), fmt.Errorf("not started: %w", err))
		}
		return r.run(detached, client, op)
	})

	opLogger.Finish(len(results), Failed(results))
	return results
}

func (r *Registry) run(ctx context.Context, client *Client, op func(context.Context, *Client) error) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Printer operation panicked",
				zap.String("printer_id", client.ID()),
				zap.Any("panic", p),
			)
			result = newResult(client.ID(), fmt.Errorf("panic: %v", p))
		}
	}()

	start := time.Now()
	err := op(ctx, client)
	r.logger.Debug("Printer operation finished",
		zap.String("printer_id", client.ID()),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("success", err == nil),
	)
	return newResult(client.ID(), err)
}
