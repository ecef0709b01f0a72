package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sessionlab/billing/internal/domain/payment"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/postgres"
	"github.com/sessionlab/billing/internal/types"
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) CreateIfNotExists(ctx context.Context, p *payment.Payment) (bool, error) {
	// The unique (provider, provider_payment_id) index makes the insert the
	// atomic idempotency gate for webhook processing.
	query := `
		INSERT INTO payments (
			id, invoice_id, provider, provider_payment_id, amount, currency,
			payment_status, error_message, succeeded_at, failed_at,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :invoice_id, :provider, :provider_payment_id, :amount, :currency,
			:payment_status, :error_message, :succeeded_at, :failed_at,
			:status, :created_at, :updated_at, :created_by, :updated_by
		) ON CONFLICT (provider, provider_payment_id) DO NOTHING`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to record payment").
			Mark(ierr.ErrDatabase)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to record payment").
			Mark(ierr.ErrDatabase)
	}
	return n > 0, nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	query := `SELECT * FROM payments WHERE id = $1`

	var p payment.Payment
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Payment not found").
				WithReportableDetails(map[string]any{
					"payment_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) GetByProviderPaymentID(ctx context.Context, provider types.PaymentProvider, providerPaymentID string) (*payment.Payment, error) {
	query := `SELECT * FROM payments WHERE provider = $1 AND provider_payment_id = $2`

	var p payment.Payment
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, provider, providerPaymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Payment not found").
				WithReportableDetails(map[string]any{
					"provider":            provider,
					"provider_payment_id": providerPaymentID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments SET
			payment_status = :payment_status,
			error_message = :error_message,
			succeeded_at = :succeeded_at,
			failed_at = :failed_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("payment not found").
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	query := `SELECT * FROM payments WHERE invoice_id = $1 ORDER BY created_at ASC`

	var rows []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, invoiceID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payments").
			Mark(ierr.ErrDatabase)
	}
	return rows, nil
}
