// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kitchen-print-service/internal/config"
	"kitchen-print-service/internal/database"
	"kitchen-print-service/internal/discovery"
	"kitchen-print-service/internal/events"
	"kitchen-print-service/internal/handler"
	"kitchen-print-service/internal/printer"
	"kitchen-print-service/internal/repository"
	"kitchen-print-service/internal/routes"
	"kitchen-print-service/internal/service"
	"kitchen-print-service/internal/transport"
	"kitchen-print-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	registry     *printer.Registry
	printService *service.PrintService
	eventBus     *handler.EventBus
	wsHandler    *handler.WebSocketHandler
	subscriber   *events.OrderSubscriber
	printerRepo  repository.PrinterRepository

	cancel context.CancelFunc
}

// @title Kitchen Print Service API
// @version 1.0.0
// @description Prints kitchen orders on thermal receipt printers over serial, USB, Bluetooth and the network
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance. KITCHEN_PRINT_CONFIG
// names an explicit config file.
func NewApplication() (*Application, error) {
	cfg, err := config.LoadFile(os.Getenv("KITCHEN_PRINT_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "kitchen-print-service")
	serviceLogger.LogServiceStart(cfg.App.Version,
		zap.String("environment", cfg.App.Environment),
		zap.Int("configured_printers", len(cfg.Printers)),
	)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializePrinters(); err != nil {
		return nil, fmt.Errorf("failed to initialize printers: %w", err)
	}

	if err := app.initializeSubscriber(); err != nil {
		return nil, fmt.Errorf("failed to initialize order subscriber: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeDatabase connects to Postgres and runs migrations when the
// printer store is enabled
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Printer store disabled, profiles come from configuration only")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Database.AutoMigrate {
		if err := database.NewMigrator(db, app.logger).Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.printerRepo = repository.NewPrinterRepository(db, app.logger)

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializePrinters builds the transport factory, registry and print service
func (app *Application) initializePrinters() error {
	mode, err := transport.ParseNetworkMode(app.config.Printing.NetworkMode)
	if err != nil {
		return err
	}

	opts := transport.DefaultOptions(app.logger)
	opts.NetworkMode = mode
	if app.config.Printing.ConnectTimeout > 0 {
		opts.ConnectTimeout = app.config.Printing.ConnectTimeout
	}
	if app.config.Printing.SendTimeout > 0 {
		opts.SendTimeout = app.config.Printing.SendTimeout
	}

	app.eventBus = handler.NewEventBus(app.logger)
	app.registry = printer.NewRegistry(
		transport.NewFactory(opts),
		app.logger,
		printer.WithEventHandler(app.eventBus.Publish),
		printer.WithMaxConcurrency(app.config.Printing.MaxConcurrency),
	)

	prober := discovery.NewProber(opts.Drivers, app.logger)
	app.printService = service.NewPrintService(app.config, app.registry, prober, app.printerRepo, app.logger)
	app.wsHandler = handler.NewWebSocketHandler(app.printService, &app.config.Security, app.logger)

	app.logger.Info("Printer registry initialized",
		zap.String("network_mode", string(mode)),
		zap.Int("max_concurrency", app.config.Printing.MaxConcurrency),
	)
	return nil
}

func (app *Application) initializeSubscriber() error {
	if !app.config.NATS.Enabled {
		return nil
	}

	subscriber, err := events.NewOrderSubscriber(app.config.NATS, app.printService, app.logger)
	if err != nil {
		return err
	}
	app.subscriber = subscriber
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	checkers := make(map[string]handler.HealthChecker)
	if app.database != nil {
		checkers["database"] = app.database
	}
	if app.subscriber != nil {
		checkers["nats"] = app.subscriber
	}

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.printService,
		app.wsHandler,
		checkers,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.GetServerAddr()))
}

// Start runs the background workers and the HTTP server until a shutdown signal
func (app *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	wsEvents := app.eventBus.Subscribe()
	go app.eventBus.Start(ctx)
	go app.wsHandler.Run(wsEvents)

	bootCtx, bootCancel := context.WithTimeout(ctx, 2*time.Minute)
	err := app.printService.Bootstrap(bootCtx)
	bootCancel()
	if err != nil {
		return fmt.Errorf("failed to register printers: %w", err)
	}

	if app.subscriber != nil {
		if err := app.subscriber.Start(); err != nil {
			return err
		}
	}

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown stops intake first, then the server, then the printers
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "kitchen-print-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	if app.subscriber != nil {
		if err := app.subscriber.Close(); err != nil {
			app.logger.Error("Order subscriber close error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.printService.Shutdown()
	if app.cancel != nil {
		app.cancel()
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
