package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sessionlab/billing/internal/api"
	v1 "github.com/sessionlab/billing/internal/api/v1"
	"github.com/sessionlab/billing/internal/cache"
	"github.com/sessionlab/billing/internal/config"
	"github.com/sessionlab/billing/internal/domain/auditlog"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	"github.com/sessionlab/billing/internal/domain/invoice"
	"github.com/sessionlab/billing/internal/domain/payment"
	"github.com/sessionlab/billing/internal/domain/plan"
	"github.com/sessionlab/billing/internal/domain/subscription"
	"github.com/sessionlab/billing/internal/idempotency"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
	repository "github.com/sessionlab/billing/internal/repository/postgres"
	"github.com/sessionlab/billing/internal/service"
	"github.com/sessionlab/billing/internal/webhook/provider"
	"go.uber.org/fx"
)

// @title Billing API
// @version 1.0
// @description Subscription billing and entitlement service
// @BasePath /v1
// @schemes http https

func init() {
	// The engine reasons about billing periods in UTC only
	time.Local = time.UTC
}

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			newLogger,
			newCache,
			postgres.NewDB,
			provider.DefaultRegistry,
			idempotency.NewGenerator,

			// Repositories
			repository.NewPlanRepository,
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,
			repository.NewEntitlementRepository,
			repository.NewAuditLogRepository,

			// Services
			newServiceParams,
			service.NewPlanService,
			service.NewEntitlementService,
			service.NewEnforcementService,
			service.NewSubscriptionService,
			service.NewInvoiceService,
			service.NewWebhookService,

			// Handlers and router
			v1.NewHealthHandler,
			v1.NewPlanHandler,
			v1.NewSubscriptionHandler,
			v1.NewInvoiceHandler,
			v1.NewWebhookHandler,
			newRouter,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

func newLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging.Level)
}

func newCache() cache.Cache {
	return cache.NewInMemoryCache()
}

func newServiceParams(
	log *logger.Logger,
	cfg *config.Configuration,
	c cache.Cache,
	db *postgres.DB,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	entitlementRepo entitlement.Repository,
	auditLogRepo auditlog.Repository,
	generator *idempotency.Generator,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:               log,
		Config:               cfg,
		Cache:                c,
		DB:                   db,
		PlanRepo:             planRepo,
		SubRepo:              subRepo,
		InvoiceRepo:          invoiceRepo,
		PaymentRepo:          paymentRepo,
		EntitlementRepo:      entitlementRepo,
		AuditLogRepo:         auditLogRepo,
		IdempotencyGenerator: generator,
	}
}

func newRouter(
	healthHandler *v1.HealthHandler,
	planHandler *v1.PlanHandler,
	subscriptionHandler *v1.SubscriptionHandler,
	invoiceHandler *v1.InvoiceHandler,
	webhookHandler *v1.WebhookHandler,
	cfg *config.Configuration,
) *gin.Engine {
	return api.NewRouter(api.Handlers{
		Health:       healthHandler,
		Plan:         planHandler,
		Subscription: subscriptionHandler,
		Invoice:      invoiceHandler,
		Webhook:      webhookHandler,
	}, cfg)
}

func startServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	db *postgres.DB,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	for providerName, secret := range cfg.Webhook.Secrets {
		if secret == "" {
			log.Warnw("webhook signature verification disabled",
				"provider", providerName,
			)
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			db.Close()
			return nil
		},
	})
}
