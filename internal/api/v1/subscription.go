package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sessionlab/billing/internal/api/dto"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/service"
)

type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

func NewSubscriptionHandler(service service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		log:     log,
	}
}

// @Summary Create a subscription
// @Description Subscribe an organization to a plan
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.SubscribeRequest true "Subscription details"
// @Success 201 {object} dto.SubscribeResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /subscriptions [post]
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Subscribe(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Change plan
// @Description Move a subscription to a different plan, prorating by default
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param change body dto.ChangePlanRequest true "Plan change details"
// @Success 200 {object} dto.ChangePlanResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /subscriptions/change-plan [post]
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	var req dto.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ChangePlan(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a subscription
// @Description Cancel immediately or at the end of the current period
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param cancellation body dto.CancelSubscriptionRequest true "Cancellation details"
// @Success 200 {object} dto.CancelSubscriptionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a subscription
// @Description Get an organization's subscription with plan and entitlements
// @Tags Subscriptions
// @Produce json
// @Param org_id query string true "Organization ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.GetSubscription(c.Request.Context(), c.Query("org_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
