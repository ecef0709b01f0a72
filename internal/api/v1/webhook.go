package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sessionlab/billing/internal/api/dto"
	"github.com/sessionlab/billing/internal/config"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/service"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/provider"
	"github.com/sessionlab/billing/internal/webhook/verifier"
)

// WebhookHandler is the ingress for provider callbacks. Verification always
// runs against the raw request bytes, before any JSON decoding.
type WebhookHandler struct {
	service  service.WebhookService
	registry *provider.Registry
	config   *config.Configuration
	log      *logger.Logger
}

func NewWebhookHandler(
	service service.WebhookService,
	registry *provider.Registry,
	cfg *config.Configuration,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		registry: registry,
		config:   cfg,
		log:      log,
	}
}

// @Summary Receive a provider webhook
// @Description Verify, normalize and idempotently process a provider event
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Payment provider" Enums(stripe, razorpay, internal)
// @Success 200 {object} dto.WebhookAckResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	providerName := types.PaymentProvider(c.Param("provider"))

	adapter, err := h.registry.ForProvider(providerName)
	if err != nil {
		c.Error(err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Unable to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	v := verifier.New(adapter.Scheme(), h.config.Webhook.SecretFor(providerName))
	signature := c.GetHeader(adapter.SignatureHeader())
	if err := v.Verify(body, signature); err != nil {
		h.log.Warnw("rejected webhook with invalid signature",
			"provider", providerName,
			"error", err,
		)
		c.Error(err)
		return
	}

	event, err := adapter.Parse(body)
	if err != nil {
		if errors.Is(err, provider.ErrUnhandled) {
			// Out-of-taxonomy provider events are acknowledged so the
			// provider stops retrying them
			h.log.Debugw("acknowledged unhandled webhook event",
				"provider", providerName,
			)
			c.JSON(http.StatusOK, dto.WebhookAckResponse{Received: true})
			return
		}
		c.Error(err)
		return
	}

	result, err := h.service.ProcessEvent(c.Request.Context(), event)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAckResponse{
		Received:  true,
		Duplicate: result.Duplicate,
	})
}
