package service

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
	"github.com/sessionlab/billing/internal/idempotency"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/types"
)

// TxRunner executes a function within a single storage transaction. Nested
// calls join the outer transaction. *postgres.DB implements it; tests use a
// pass-through runner.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Cache  cache.Cache
	DB     TxRunner

	// Repositories
	PlanRepo        plan.Repository
	SubRepo         subscription.Repository
	InvoiceRepo     invoice.Repository
	PaymentRepo     payment.Repository
	EntitlementRepo entitlement.Repository
	AuditLogRepo    auditlog.Repository

	IdempotencyGenerator *idempotency.Generator
}

// newAuditEntry builds an audit entry for a state transition. The actor is
// taken from the request context; webhook-driven transitions have none.
func newAuditEntry(ctx context.Context, orgID string, eventType types.AuditEventType, metadata types.Metadata) *auditlog.Entry {
	entry := &auditlog.Entry{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_AUDIT_LOG),
		OrgID:     orgID,
		EventType: eventType,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if actorID := types.GetActorID(ctx); actorID != "" {
		entry.ActorID = &actorID
	}
	return entry
}
