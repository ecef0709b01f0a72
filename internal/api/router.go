package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/sessionlab/billing/internal/api/v1"
	"github.com/sessionlab/billing/internal/config"
	"github.com/sessionlab/billing/internal/rest/middleware"
	"github.com/sessionlab/billing/internal/types"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Plan         *v1.PlanHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Webhook      *v1.WebhookHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration) *gin.Engine {
	if cfg.Deployment.Mode == types.RunModeProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// Provider callbacks sit outside the versioned API surface
	router.POST("/webhooks/:provider", handlers.Webhook.HandleWebhook)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	plans := router.Group("/plans")
	{
		plans.GET("", handlers.Plan.ListPlans)
		plans.GET("/:code", handlers.Plan.GetPlan)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.Subscribe)
		subscriptions.GET("", handlers.Subscription.GetSubscription)
		subscriptions.POST("/change-plan", handlers.Subscription.ChangePlan)
		subscriptions.POST("/cancel", handlers.Subscription.Cancel)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.ListInvoices)
	}
}
