package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/service"
)

type PlanHandler struct {
	service service.PlanService
	log     *logger.Logger
}

func NewPlanHandler(service service.PlanService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		log:     log,
	}
}

// @Summary List plans
// @Description List the plans currently available for purchase
// @Tags Plans
// @Produce json
// @Success 200 {object} dto.ListPlansResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	resp, err := h.service.ListActivePlans(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a plan
// @Description Get a plan by its code
// @Tags Plans
// @Produce json
// @Param code path string true "Plan code"
// @Success 200 {object} dto.PlanResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /plans/{code} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	resp, err := h.service.GetPlanByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
