// internal/handler/print_handler.go
package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitchen-print-service/internal/model"
	"kitchen-print-service/internal/service"
	"kitchen-print-service/internal/utils"
)

// PrintHandler handles kitchen order print requests
type PrintHandler struct {
	printService *service.PrintService
	logger       *utils.ServiceLogger
}

// NewPrintHandler creates a new print handler
func NewPrintHandler(printService *service.PrintService, logger *zap.Logger) *PrintHandler {
	return &PrintHandler{
		printService: printService,
		logger:       utils.NewServiceLogger(logger, "print-handler"),
	}
}

// RegisterRoutes registers print routes
func (h *PrintHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/print", h.PrintOrder)
	router.POST("/printers/:id/print", h.PrintOrderTo)
}

// PrintOrder prints a kitchen order on every registered printer
// @Summary Broadcast kitchen order
// @Tags Print
// @Accept json
// @Produce json
// @Param request body model.KitchenOrder true "Kitchen order"
// @Success 200 {object} utils.APIResponse{data=ResultSummary} "One outcome per printer"
// @Failure 400 {object} utils.APIResponse "Invalid order"
// @Router /print [post]
func (h *PrintHandler) PrintOrder(c *gin.Context) {
	var order model.KitchenOrder
	if err := c.ShouldBindJSON(&order); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid order", err)
		return
	}

	results, err := h.printService.PrintOrder(c.Request.Context(), &order)
	if err != nil {
		utils.DomainErrorResponse(c, "Failed to print order", err)
		return
	}

	summary := resultSummary(results)
	utils.SuccessResponse(c, http.StatusOK,
		fmt.Sprintf("Order printed on %d of %d printers", summary.Succeeded, summary.Total),
		summary,
	)
}

// PrintOrderTo prints a kitchen order on one printer
// @Summary Print kitchen order on one printer
// @Tags Print
// @Accept json
// @Produce json
// @Param id path string true "Printer ID"
// @Param request body model.KitchenOrder true "Kitchen order"
// @Success 200 {object} utils.APIResponse{data=printer.Result}
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Failure 502 {object} utils.APIResponse "Printer unreachable"
// @Router /printers/{id}/print [post]
func (h *PrintHandler) PrintOrderTo(c *gin.Context) {
	var order model.KitchenOrder
	if err := c.ShouldBindJSON(&order); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid order", err)
		return
	}

	id := c.Param("id")
	result, err := h.printService.PrintOrderTo(c.Request.Context(), id, &order)
	if err != nil {
		utils.DomainErrorResponse(c, "Failed to print order", err)
		return
	}
	if !result.Success {
		h.logger.Warn("Print failed", zap.String("printer_id", id), zap.Error(result.Err))
		utils.ErrorResponse(c, http.StatusBadGateway, "Print failed", result.Err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Order printed", result)
}
