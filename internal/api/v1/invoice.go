package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/service"
)

type InvoiceHandler struct {
	service service.InvoiceService
	log     *logger.Logger
}

func NewInvoiceHandler(service service.InvoiceService, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		log:     log,
	}
}

// @Summary List invoices
// @Description List an organization's invoices, newest first
// @Tags Invoices
// @Produce json
// @Param org_id query string true "Organization ID"
// @Success 200 {object} dto.ListInvoicesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	resp, err := h.service.ListInvoices(c.Request.Context(), c.Query("org_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
