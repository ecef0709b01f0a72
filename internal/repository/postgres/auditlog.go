package postgres

import (
	"context"
	"encoding/json"

	"github.com/sessionlab/billing/internal/domain/auditlog"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
)

type auditLogRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewAuditLogRepository(db *postgres.DB, logger *logger.Logger) auditlog.Repository {
	return &auditLogRepository{db: db, logger: logger}
}

type auditLogRow struct {
	auditlog.Entry
	MetadataJSON []byte `db:"metadata"`
}

// Append writes one audit entry. The log is append-only; there is no update
// or delete path.
func (r *auditLogRepository) Append(ctx context.Context, entry *auditlog.Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode audit metadata").
			Mark(ierr.ErrSystem)
	}

	query := `
		INSERT INTO audit_logs (id, org_id, event_type, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		entry.ID, entry.OrgID, entry.EventType, entry.ActorID, metadata, entry.CreatedAt,
	); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to append audit entry").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *auditLogRepository) ListByOrgID(ctx context.Context, orgID string) ([]*auditlog.Entry, error) {
	query := `SELECT * FROM audit_logs WHERE org_id = $1 ORDER BY created_at ASC`

	var rows []auditLogRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, orgID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list audit entries").
			Mark(ierr.ErrDatabase)
	}

	entries := make([]*auditlog.Entry, len(rows))
	for i := range rows {
		entry := rows[i].Entry
		if len(rows[i].MetadataJSON) > 0 {
			if err := json.Unmarshal(rows[i].MetadataJSON, &entry.Metadata); err != nil {
				return nil, ierr.WithError(err).
					WithHint("Audit entry has malformed metadata").
					Mark(ierr.ErrIntegrity)
			}
		}
		entries[i] = &entry
	}
	return entries, nil
}
