package testutil

import (
	"context"
	"time"

	"github.com/sessionlab/billing/internal/cache"
	"github.com/sessionlab/billing/internal/config"
	"github.com/sessionlab/billing/internal/domain/auditlog"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	"github.com/sessionlab/billing/internal/domain/invoice"
	"github.com/sessionlab/billing/internal/domain/payment"
	"github.com/sessionlab/billing/internal/domain/plan"
	"github.com/sessionlab/billing/internal/domain/subscription"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	PlanRepo         plan.Repository
	SubscriptionRepo subscription.Repository
	InvoiceRepo      invoice.Repository
	PaymentRepo      payment.Repository
	EntitlementRepo  entitlement.Repository
	AuditLogRepo     auditlog.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	db     *InMemoryTxRunner
	cache  cache.Cache
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := &config.Configuration{
		Logging: config.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.db = NewInMemoryTxRunner()
	s.cache = cache.NewInMemoryCache()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = types.SetRequestID(s.ctx, types.GenerateUUID())
	s.ctx = types.SetActorID(s.ctx, "user_test")
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PlanRepo:         NewInMemoryPlanStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
		EntitlementRepo:  NewInMemoryEntitlementStore(),
		AuditLogRepo:     NewInMemoryAuditLogStore(),
	}
}

// ClearStores resets all repositories
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.EntitlementRepo.(*InMemoryEntitlementStore).Clear()
	s.stores.AuditLogRepo.(*InMemoryAuditLogStore).Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the pass-through transaction runner
func (s *BaseServiceTestSuite) GetDB() *InMemoryTxRunner {
	return s.db
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the frozen test start time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
