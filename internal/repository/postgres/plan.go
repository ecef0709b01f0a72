package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sessionlab/billing/internal/domain/plan"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
	"github.com/sessionlab/billing/internal/types"
)

type planRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPlanRepository(db *postgres.DB, logger *logger.Logger) plan.Repository {
	return &planRepository{db: db, logger: logger}
}

// planRow carries the JSONB columns that do not map directly onto the
// domain model.
type planRow struct {
	plan.Plan
	FeaturesJSON []byte `db:"features"`
	MetadataJSON []byte `db:"metadata"`
}

func (r *planRow) toDomain() (*plan.Plan, error) {
	p := r.Plan
	if len(r.FeaturesJSON) > 0 {
		if err := json.Unmarshal(r.FeaturesJSON, &p.Features); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Plan has a malformed feature mapping").
				Mark(ierr.ErrIntegrity)
		}
	}
	if len(r.MetadataJSON) > 0 {
		if err := json.Unmarshal(r.MetadataJSON, &p.Metadata); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Plan has malformed metadata").
				Mark(ierr.ErrIntegrity)
		}
	}
	return &p, nil
}

const planColumns = `
	id, code, name, price, currency, interval, trial_days, features,
	is_active, metadata, status, created_at, updated_at, created_by, updated_by`

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	query := `SELECT` + planColumns + ` FROM plans WHERE id = $1`

	var row planRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Plan not found").
				WithReportableDetails(map[string]any{
					"plan_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return row.toDomain()
}

func (r *planRepository) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	query := `SELECT` + planColumns + ` FROM plans WHERE code = $1`

	var row planRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Plan not found").
				WithReportableDetails(map[string]any{
					"plan_code": code,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return row.toDomain()
}

func (r *planRepository) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	query := `SELECT` + planColumns + ` FROM plans
		WHERE is_active = true AND status = $1
		ORDER BY price ASC`

	var rows []planRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, types.StatusPublished); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plans").
			Mark(ierr.ErrDatabase)
	}

	plans := make([]*plan.Plan, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		plans[i] = p
	}
	return plans, nil
}
