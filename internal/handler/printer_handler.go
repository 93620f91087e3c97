// internal/handler/printer_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitchen-print-service/internal/printer"
	"kitchen-print-service/internal/service"
	"kitchen-print-service/internal/utils"
)

// autoDetectTimeout bounds the USB request made by the autodetect endpoint
const autoDetectTimeout = 15 * time.Second

// PrinterHandler handles printer registry HTTP requests
type PrinterHandler struct {
	printService *service.PrintService
	logger       *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(printService *service.PrintService, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{
		printService: printService,
		logger:       utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/capabilities", h.GetCapabilities)

	printers := router.Group("/printers")
	{
		printers.GET("", h.ListPrinters)
		printers.POST("", h.AddPrinter)
		printers.POST("/connect", h.ConnectAll)
		printers.POST("/autodetect", h.AutoDetect)

		printerRoutes := printers.Group("/:id")
		{
			printerRoutes.GET("", h.GetPrinter)
			printerRoutes.DELETE("", h.RemovePrinter)
			printerRoutes.POST("/connect", h.ConnectPrinter)
		}
	}
}

// ListPrinters lists every registered printer with its status
// @Summary List printers
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]printer.Status}
// @Router /printers [get]
func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	statuses := h.printService.Printers()
	utils.SuccessResponse(c, http.StatusOK, "Printers retrieved successfully", gin.H{
		"printers": statuses,
		"total":    len(statuses),
	})
}

// GetPrinter returns the status of one printer
func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	status, err := h.printService.Printer(c.Param("id"))
	if err != nil {
		utils.DomainErrorResponse(c, "Failed to get printer", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer retrieved successfully", status)
}

// AddPrinter registers a printer, replacing one with the same id
// @Summary Add printer
// @Tags Printers
// @Accept json
// @Produce json
// @Param request body service.AddPrinterRequest true "Printer registration"
// @Success 201 {object} utils.APIResponse{data=printer.Status}
// @Failure 400 {object} utils.APIResponse "Invalid profile"
// @Router /printers [post]
func (h *PrinterHandler) AddPrinter(c *gin.Context) {
	var req service.AddPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status, err := h.printService.AddPrinter(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("Failed to add printer", zap.String("printer_id", req.ID), zap.Error(err))
		utils.DomainErrorResponse(c, "Failed to add printer", err)
		return
	}

	h.logger.Info("Printer added", zap.String("printer_id", req.ID), zap.String("state", string(status.State)))
	utils.SuccessResponse(c, http.StatusCreated, "Printer added successfully", status)
}

// RemovePrinter disconnects and unregisters a printer
func (h *PrinterHandler) RemovePrinter(c *gin.Context) {
	id := c.Param("id")
	if err := h.printService.RemovePrinter(c.Request.Context(), id); err != nil {
		utils.DomainErrorResponse(c, "Failed to remove printer", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer removed successfully", gin.H{"id": id})
}

// ConnectAll connects every printer and reports one outcome per printer
// @Summary Connect all printers
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]printer.Result}
// @Router /printers/connect [post]
func (h *PrinterHandler) ConnectAll(c *gin.Context) {
	results := h.printService.ConnectAll(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "Connect completed", resultSummary(results))
}

// ConnectPrinter retries one printer's connection
func (h *PrinterHandler) ConnectPrinter(c *gin.Context) {
	result, err := h.printService.ConnectPrinter(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.DomainErrorResponse(c, "Failed to connect printer", err)
		return
	}
	if !result.Success {
		utils.ErrorResponse(c, http.StatusBadGateway, "Printer connection failed", result.Err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer connected", result)
}

// AutoDetect proposes a profile for an attached USB printer. The profile is
// not registered; the caller posts it back to /printers.
// @Summary Auto-detect USB printer
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=discovery.Detection}
// @Router /printers/autodetect [post]
func (h *PrinterHandler) AutoDetect(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), autoDetectTimeout)
	defer cancel()

	detection := h.printService.AutoDetect(ctx)
	utils.SuccessResponse(c, http.StatusOK, "Auto-detect completed", detection)
}

// GetCapabilities reports the transports usable on this host
func (h *PrinterHandler) GetCapabilities(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Capabilities retrieved successfully", h.printService.Capabilities())
}

// ResultSummary is the body of every fan-out endpoint
type ResultSummary struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []printer.Result `json:"results"`
}

func resultSummary(results []printer.Result) ResultSummary {
	failed := printer.Failed(results)
	return ResultSummary{
		Total:     len(results),
		Succeeded: len(results) - failed,
		Failed:    failed,
		Results:   results,
	}
}
