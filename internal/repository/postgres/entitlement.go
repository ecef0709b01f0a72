package postgres

import (
	"context"

	"github.com/sessionlab/billing/internal/domain/entitlement"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
)

type entitlementRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEntitlementRepository(db *postgres.DB, logger *logger.Logger) entitlement.Repository {
	return &entitlementRepository{db: db, logger: logger}
}

// ReplaceForOrg swaps the organization's entire entitlement set in one
// transaction. Readers either see the old set or the new one, never a mix.
func (r *entitlementRepository) ReplaceForOrg(ctx context.Context, orgID string, entitlements []*entitlement.Entitlement) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		if _, err := q.ExecContext(ctx, `DELETE FROM entitlements WHERE org_id = $1`, orgID); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to clear entitlements").
				Mark(ierr.ErrDatabase)
		}

		query := `
			INSERT INTO entitlements (
				id, org_id, key, value, source, expires_at,
				status, created_at, updated_at, created_by, updated_by
			) VALUES (
				:id, :org_id, :key, :value, :source, :expires_at,
				:status, :created_at, :updated_at, :created_by, :updated_by
			)`
		for _, ent := range entitlements {
			if _, err := q.NamedExecContext(ctx, query, ent); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to write entitlement").
					WithReportableDetails(map[string]any{
						"key": ent.Key,
					}).
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *entitlementRepository) ListByOrgID(ctx context.Context, orgID string) ([]*entitlement.Entitlement, error) {
	query := `SELECT * FROM entitlements WHERE org_id = $1 ORDER BY key ASC`

	var rows []*entitlement.Entitlement
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, orgID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list entitlements").
			Mark(ierr.ErrDatabase)
	}
	return rows, nil
}
