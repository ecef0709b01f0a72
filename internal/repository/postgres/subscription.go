package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/sessionlab/billing/internal/domain/subscription"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, org_id, plan_id, subscription_status, currency, trial_end,
			current_period_start, current_period_end, cancel_at, canceled_at,
			version, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :org_id, :plan_id, :subscription_status, :currency, :trial_end,
			:current_period_start, :current_period_end, :cancel_at, :canceled_at,
			:version, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Organization already has a subscription").
				WithReportableDetails(map[string]any{
					"org_id": sub.OrgID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Subscription not found").
				WithReportableDetails(map[string]any{
					"subscription_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByOrgID(ctx context.Context, orgID string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE org_id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("No subscription for this organization").
				WithReportableDetails(map[string]any{
					"org_id": orgID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

// Update writes the subscription back with an optimistic version check. The
// WHERE clause matches the version the caller read; a concurrent writer that
// committed in between bumps the version, the update touches zero rows and
// the caller gets a conflict instead of silently losing the other write.
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			plan_id = :plan_id,
			subscription_status = :subscription_status,
			trial_end = :trial_end,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			cancel_at = :cancel_at,
			canceled_at = :canceled_at,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, getErr := r.Get(ctx, sub.ID); ierr.IsNotFound(getErr) {
			return ierr.NewError("subscription not found").
				WithHint("Subscription not found").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed while this request was running, please retry").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"version":         sub.Version,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	sub.Version++
	return nil
}
