// internal/events/order_subscriber.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"kitchen-print-service/internal/config"
	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/printer"
	"kitchen-print-service/internal/utils"
)

// DefaultPrintTimeout bounds the broadcast of one order taken from the bus
const DefaultPrintTimeout = 30 * time.Second

// OrderPrinter broadcasts a kitchen order to every registered printer
type OrderPrinter interface {
	PrintOrder(ctx context.Context, order *model.KitchenOrder) ([]printer.Result, error)
}

// Reply is sent back when an order message carries a reply subject
type Reply struct {
	OrderID   string           `json:"order_id,omitempty"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Error     string           `json:"error,omitempty"`
	Results   []printer.Result `json:"results,omitempty"`
}

// OrderSubscriber prints kitchen orders published on a NATS subject. Members
// of the same queue group share the subject so each order prints once.
type OrderSubscriber struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	printer OrderPrinter
	config  config.NATSConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewOrderSubscriber connects to the NATS server named in cfg
func NewOrderSubscriber(cfg config.NATSConfig, orderPrinter OrderPrinter, logger *zap.Logger) (*OrderSubscriber, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newOrderSubscriber(conn, cfg, orderPrinter, logger), nil
}

func newOrderSubscriber(conn *nats.Conn, cfg config.NATSConfig, orderPrinter OrderPrinter, logger *zap.Logger) *OrderSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSubscriber{
		conn:    conn,
		printer: orderPrinter,
		config:  cfg,
		timeout: DefaultPrintTimeout,
		logger:  logger.With(zap.String("component", "order-subscriber"), zap.String("subject", cfg.Subject)),
	}
}

// Start subscribes to the order subject. Messages are handled on the
// subscription's goroutine, one at a time.
func (s *OrderSubscriber) Start() error {
	handler := func(msg *nats.Msg) {
		reply := s.handle(context.Background(), msg.Data)
		if msg.Reply == "" {
			return
		}
		payload, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("Failed to encode reply", zap.Error(err))
			return
		}
		if err := msg.Respond(payload); err != nil {
			s.logger.Warn("Failed to send reply", zap.Error(err))
		}
	}

	var err error
	if s.config.Queue != "" {
		s.sub, err = s.conn.QueueSubscribe(s.config.Subject, s.config.Queue, handler)
	} else {
		s.sub, err = s.conn.Subscribe(s.config.Subject, handler)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.config.Subject, err)
	}

	s.logger.Info("Order subscriber started", zap.String("queue", s.config.Queue))
	return nil
}

// handle decodes and prints one order. Malformed messages are logged and dropped.
func (s *OrderSubscriber) handle(ctx context.Context, data []byte) Reply {
	var order model.KitchenOrder
	if err := json.Unmarshal(data, &order); err != nil {
		s.logger.Warn("Dropping malformed order message", zap.Error(err), zap.Int("bytes", len(data)))
		return Reply{Error: fmt.Sprintf("malformed order: %v", err)}
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opLogger := utils.NewOperationLogger(s.logger, "print_order", order.ID)
	opLogger.Start(zap.String("order_number", order.OrderNumber))

	results, err := s.printer.PrintOrder(ctx, &order)
	if err != nil {
		if errors.Is(err, model.ErrInvalidOrder) {
			s.logger.Warn("Dropping invalid order", zap.String("order_id", order.ID), zap.Error(err))
		} else {
			opLogger.Error(err)
		}
		return Reply{OrderID: order.ID, Error: err.Error()}
	}

	failed := printer.Failed(results)
	opLogger.Finish(len(results), failed)
	for _, err := range multierr.Errors(printer.Errors(results)) {
		s.logger.Warn("Order not printed", zap.String("order_id", order.ID), zap.Error(err))
	}

	return Reply{
		OrderID:   order.ID,
		Succeeded: len(results) - failed,
		Failed:    failed,
		Results:   results,
	}
}

// HealthCheck reports whether the NATS connection is up
func (s *OrderSubscriber) HealthCheck(ctx context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

// Close drains the subscription and closes the connection
func (s *OrderSubscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.logger.Warn("Failed to drain subscription", zap.Error(err))
		}
	}
	s.conn.Close()
	return nil
}
