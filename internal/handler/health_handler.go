// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitchen-print-service/internal/config"
	"kitchen-print-service/internal/printer"
	"kitchen-print-service/internal/service"
	"kitchen-print-service/internal/utils"
)

// HealthChecker is an optional dependency reported by the health endpoint
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	printService *service.PrintService
	checkers     map[string]HealthChecker
	config       *config.Config
	logger       *utils.ServiceLogger
	startTime    time.Time
}

// NewHealthHandler creates a new health handler. checkers names the
// dependencies that make the service unhealthy when they fail.
func NewHealthHandler(printService *service.PrintService, checkers map[string]HealthChecker, config *config.Config, logger *zap.Logger) *HealthHandler {
	if checkers == nil {
		checkers = map[string]HealthChecker{}
	}
	return &HealthHandler{
		printService: printService,
		checkers:     checkers,
		config:       config,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
		startTime:    time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports dependency health and printer connectivity.
// Disconnected printers degrade the report but never fail it.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	for _, name := range h.checkerNames() {
		if err := h.checkers[name].HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			health.Status = "unhealthy"
			health.Checks[name] = CheckResult{Status: "unhealthy", Message: err.Error()}
			continue
		}
		health.Checks[name] = CheckResult{Status: "healthy"}
	}

	health.Checks["printers"] = printerCheck(h.printService.Printers())

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

func printerCheck(statuses []printer.Status) CheckResult {
	connected := 0
	for _, status := range statuses {
		if status.State == printer.StateConnected {
			connected++
		}
	}

	result := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"total":     len(statuses),
			"connected": connected,
		},
	}
	if connected < len(statuses) {
		result.Status = "degraded"
	}
	return result
}

func (h *HealthHandler) checkerNames() []string {
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadinessCheck for Kubernetes readiness probe
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	for _, name := range h.checkerNames() {
		if err := h.checkers[name].HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": name + " not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
