// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitchen-print-service/internal/config"
	"kitchen-print-service/internal/handler"
	"kitchen-print-service/internal/middleware"
	"kitchen-print-service/internal/service"
	"kitchen-print-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	printService *service.PrintService
	wsHandler    *handler.WebSocketHandler
	checkers     map[string]handler.HealthChecker
}

// NewRouter creates a new router instance. checkers lists the optional
// dependencies reported by the health endpoints.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	printService *service.PrintService,
	wsHandler *handler.WebSocketHandler,
	checkers map[string]handler.HealthChecker,
) *Router {
	return &Router{
		config:       config,
		logger:       logger,
		printService: printService,
		wsHandler:    wsHandler,
		checkers:     checkers,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case gin.Mode() == gin.TestMode:
	case r.config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(r.logger))

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.printService, r.checkers, r.config, r.logger)
	printerHandler := handler.NewPrinterHandler(r.printService, r.logger)
	printHandler := handler.NewPrintHandler(r.printService, r.logger)

	healthHandler.RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	printerHandler.RegisterRoutes(apiV1)
	printHandler.RegisterRoutes(apiV1)

	r.wsHandler.RegisterRoutes(router)

	r.logger.Info("All routes configured successfully")
}
