// internal/service/print_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kitchen-print-service/internal/config"
	"kitchen-print-service/internal/discovery"
	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/printer"
	"kitchen-print-service/internal/receipt"
	"kitchen-print-service/internal/repository"
	"kitchen-print-service/internal/utils"
)

// AddPrinterRequest registers a printer from an operator or AutoDetect profile
type AddPrinterRequest struct {
	ID      string              `json:"id" binding:"required"`
	Profile model.DeviceProfile `json:"profile"`
	Connect bool                `json:"connect"`
}

// PrintService handles kitchen order printing and printer management
type PrintService struct {
	registry *printer.Registry
	renderer *receipt.Renderer
	prober   *discovery.Prober
	repo     repository.PrinterRepository
	config   *config.Config
	logger   *utils.ServiceLogger
}

// NewPrintService creates a new print service. repo may be nil when
// profiles are not persisted.
func NewPrintService(
	cfg *config.Config,
	registry *printer.Registry,
	prober *discovery.Prober,
	repo repository.PrinterRepository,
	logger *zap.Logger,
) *PrintService {
	return &PrintService{
		registry: registry,
		renderer: receipt.NewRenderer(receipt.WithHeader(cfg.Printing.Header)),
		prober:   prober,
		repo:     repo,
		config:   cfg,
		logger:   utils.NewServiceLogger(logger, "print-service"),
	}
}

// Bootstrap registers configured and stored printers, then connects them
// when printing.connect_on_startup is set. Stored profiles that no longer
// validate are skipped.
func (s *PrintService) Bootstrap(ctx context.Context) error {
	for _, p := range s.config.Printers {
		if _, err := s.registry.Add(p.ID, s.config.PrinterProfile(p)); err != nil {
			return fmt.Errorf("failed to register printer %s: %w", p.ID, err)
		}
	}

	if s.repo != nil {
		records, err := s.repo.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to load stored printers: %w", err)
		}
		for _, record := range records {
			if _, err := s.registry.Add(record.ID, record.Profile); err != nil {
				s.logger.Warn("Skipping stored printer",
					zap.String("printer_id", record.ID),
					zap.Error(err),
				)
			}
		}
	}

	s.logger.Info("Printers registered", zap.Int("count", s.registry.Len()))

	if s.config.Printing.ConnectOnStartup {
		results := s.registry.ConnectAll(ctx)
		if failed := printer.Failed(results); failed > 0 {
			s.logger.Warn("Some printers failed to connect",
				zap.Int("failed", failed),
				zap.Error(printer.Errors(results)),
			)
		}
	}
	return nil
}

// Shutdown disconnects every printer
func (s *PrintService) Shutdown() {
	s.registry.DisconnectAll()
}

// PrintOrder validates and renders the order, then prints it on every
// printer. Per-printer failures are reported in the results only.
func (s *PrintService) PrintOrder(ctx context.Context, order *model.KitchenOrder) ([]printer.Result, error) {
	order, err := prepare(order)
	if err != nil {
		return nil, err
	}

	doc := s.renderer.Render(order)
	results := s.registry.PrintToAll(ctx, doc)

	s.logger.Info("Order printed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total().StringFixed(2)),
		zap.Int("printers", len(results)),
		zap.Int("failed", printer.Failed(results)),
	)
	return results, nil
}

// PrintOrderTo prints the order on a single printer
func (s *PrintService) PrintOrderTo(ctx context.Context, id string, order *model.KitchenOrder) (printer.Result, error) {
	order, err := prepare(order)
	if err != nil {
		return printer.Result{}, err
	}
	return s.registry.PrintToSpecific(ctx, id, s.renderer.Render(order))
}

// prepare validates the order and returns a copy stamped with an id and
// timestamp where those are missing. The caller's order is left untouched.
func prepare(order *model.KitchenOrder) (*model.KitchenOrder, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: order is required", model.ErrInvalidOrder)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	stamped := *order
	if stamped.ID == "" {
		stamped.ID = uuid.NewString()
	}
	if stamped.Timestamp.IsZero() {
		stamped.Timestamp = time.Now()
	}
	return &stamped, nil
}

// AddPrinter registers a printer, replacing any printer with the same id,
// and stores its profile when a repository is configured. Nothing is stored
// for a printer that could not be registered.
func (s *PrintService) AddPrinter(ctx context.Context, req *AddPrinterRequest) (printer.Status, error) {
	if req.ID == "" {
		return printer.Status{}, model.NewConfigurationError("id", "printer id is required")
	}
	profile := s.config.PrinterProfile(config.PrinterConfig{ID: req.ID, DeviceProfile: req.Profile})
	if err := profile.Validate(); err != nil {
		return printer.Status{}, err
	}

	client, err := s.registry.Add(req.ID, profile)
	if err != nil {
		return printer.Status{}, err
	}

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, &model.PrinterRecord{ID: req.ID, Profile: profile}); err != nil {
			if rmErr := s.registry.Remove(req.ID); rmErr != nil {
				s.logger.Warn("Failed to unregister unstored printer", zap.String("printer_id", req.ID), zap.Error(rmErr))
			}
			return printer.Status{}, fmt.Errorf("failed to store printer: %w", err)
		}
	}

	if req.Connect {
		// connect failures are part of the returned status
		_ = client.Connect(ctx)
	}
	return client.Status(), nil
}

// RemovePrinter disconnects and unregisters a printer
func (s *PrintService) RemovePrinter(ctx context.Context, id string) error {
	if err := s.registry.Remove(id); err != nil {
		return err
	}

	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("failed to delete stored printer: %w", err)
		}
	}
	return nil
}

// Printers returns the status of every registered printer
func (s *PrintService) Printers() []printer.Status {
	return s.registry.Statuses()
}

// Printer returns the status of one printer
func (s *PrintService) Printer(id string) (printer.Status, error) {
	client, err := s.registry.Get(id)
	if err != nil {
		return printer.Status{}, err
	}
	return client.Status(), nil
}

// ConnectAll connects every registered printer
func (s *PrintService) ConnectAll(ctx context.Context) []printer.Result {
	return s.registry.ConnectAll(ctx)
}

// ConnectPrinter retries the connection of a single printer
func (s *PrintService) ConnectPrinter(ctx context.Context, id string) (printer.Result, error) {
	return s.registry.ConnectOne(ctx, id)
}

// Capabilities reports the transports usable on this host
func (s *PrintService) Capabilities() discovery.Capabilities {
	return s.prober.Capabilities()
}

// AutoDetect proposes a profile for an attached USB printer
func (s *PrintService) AutoDetect(ctx context.Context) discovery.Detection {
	return s.prober.AutoDetect(ctx)
}
