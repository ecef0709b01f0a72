package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sessionlab/billing/internal/domain/invoice"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
)

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

const insertInvoiceQuery = `
	INSERT INTO invoices (
		id, invoice_number, org_id, subscription_id, kind, amount, currency,
		invoice_status, due_at, paid_at, idempotency_key,
		status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :invoice_number, :org_id, :subscription_id, :kind, :amount, :currency,
		:invoice_status, :due_at, :paid_at, :idempotency_key,
		:status, :created_at, :updated_at, :created_by, :updated_by
	)`

const insertLineItemQuery = `
	INSERT INTO invoice_line_items (
		id, invoice_id, description, amount, plan_id, period_start, period_end,
		display_order
	) VALUES (
		:id, :invoice_id, :description, :amount, :plan_id, :period_start,
		:period_end, :display_order
	)`

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)
		if _, err := q.NamedExecContext(ctx, insertInvoiceQuery, inv); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create invoice").
				Mark(ierr.ErrDatabase)
		}
		for _, item := range inv.LineItems {
			if _, err := q.NamedExecContext(ctx, insertLineItemQuery, item); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to create invoice line item").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *invoiceRepository) CreateIfNotExists(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	created := false
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		// The insert is the idempotency gate: a conflicting idempotency key
		// means another delivery already created this invoice.
		query := insertInvoiceQuery + ` ON CONFLICT (idempotency_key) DO NOTHING`
		result, err := q.NamedExecContext(ctx, query, inv)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create invoice").
				Mark(ierr.ErrDatabase)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create invoice").
				Mark(ierr.ErrDatabase)
		}
		if n == 0 {
			return nil
		}
		created = true

		for _, item := range inv.LineItems {
			if _, err := q.NamedExecContext(ctx, insertLineItemQuery, item); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to create invoice line item").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
	return created, err
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `SELECT * FROM invoices WHERE id = $1`

	var inv invoice.Invoice
	q := r.db.GetQuerier(ctx)
	if err := q.GetContext(ctx, &inv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Invoice not found").
				WithReportableDetails(map[string]any{
					"invoice_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}

	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			invoice_status = :invoice_status,
			paid_at = :paid_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) ListByOrgID(ctx context.Context, orgID string) ([]*invoice.Invoice, error) {
	query := `SELECT * FROM invoices WHERE org_id = $1 ORDER BY created_at DESC`

	var rows []invoice.Invoice
	q := r.db.GetQuerier(ctx)
	if err := q.SelectContext(ctx, &rows, query, orgID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}

	invoices := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		if err := r.loadLineItems(ctx, &rows[i]); err != nil {
			return nil, err
		}
		invoices[i] = &rows[i]
	}
	return invoices, nil
}

func (r *invoiceRepository) loadLineItems(ctx context.Context, inv *invoice.Invoice) error {
	query := `SELECT * FROM invoice_line_items WHERE invoice_id = $1 ORDER BY display_order ASC`

	var items []*invoice.LineItem
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query, inv.ID); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to load invoice line items").
			Mark(ierr.ErrDatabase)
	}
	inv.LineItems = items
	return nil
}
