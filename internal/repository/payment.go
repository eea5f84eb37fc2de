package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/infra"
)

type paymentRepo struct{}

// NewPaymentRepository returns a pgx-backed PaymentRepository.
func NewPaymentRepository() PaymentRepository {
	return &paymentRepo{}
}

const paymentColumns = `id, user_id, amount, currency, method, status,
	invoice_url, provider_data, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, db DBTX, p *domain.Payment) error {
	data := p.ProviderData
	if data == nil {
		data = []byte(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO payments (id, user_id, amount, currency, method, status, invoice_url, provider_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, infra.Int64ToNumeric(p.Amount), p.Currency,
		string(p.Method), string(p.Status), p.InvoiceURL, data,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// MarkPaid is the single credit gate: the pending guard lives in the WHERE
// clause, so duplicate webhooks, a concurrent status poll, and an expiry
// sweep can race freely and at most one caller sees true.
func (r *paymentRepo) MarkPaid(ctx context.Context, db DBTX, id string, providerData []byte) (bool, error) {
	if providerData == nil {
		providerData = []byte(`{}`)
	}
	tag, err := db.Exec(ctx, `
		UPDATE payments
		SET status = 'paid', provider_data = provider_data || $2::jsonb, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, providerData)
	if err != nil {
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkTerminalIfPending shares MarkPaid's pending guard, so a failure
// postback racing a success webhook settles on whichever update ran first.
func (r *paymentRepo) MarkTerminalIfPending(ctx context.Context, db DBTX, id string, status domain.PaymentStatus, providerData []byte) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("mark payment terminal: %q is not terminal", status)
	}
	if providerData == nil {
		providerData = []byte(`{}`)
	}
	tag, err := db.Exec(ctx, `
		UPDATE payments
		SET status = $2, provider_data = provider_data || $3::jsonb, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, string(status), providerData)
	if err != nil {
		return false, fmt.Errorf("mark payment %s: %w", status, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ExpirePendingOlderThan(ctx context.Context, db DBTX, cutoff time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE payments SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertPaidIfAbsent backs the deposit sync: the payment id is the provider
// transaction id, so overlapping poll windows collapse onto the primary key.
func (r *paymentRepo) InsertPaidIfAbsent(ctx context.Context, db DBTX, p *domain.Payment) (bool, error) {
	data := p.ProviderData
	if data == nil {
		data = []byte(`{}`)
	}
	tag, err := db.Exec(ctx, `
		INSERT INTO payments (id, user_id, amount, currency, method, status, invoice_url, provider_data)
		VALUES ($1, $2, $3, $4, $5, 'paid', $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.UserID, infra.Int64ToNumeric(p.Amount), p.Currency,
		string(p.Method), p.InvoiceURL, data,
	)
	if err != nil {
		return false, fmt.Errorf("insert paid payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p, err := scanPaymentRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanPaymentRow(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var method, status string
	var amountNum pgtype.Numeric

	err := row.Scan(&p.ID, &p.UserID, &amountNum, &p.Currency, &method, &status,
		&p.InvoiceURL, &p.ProviderData, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	if p.Amount, err = infra.NumericToInt64(amountNum); err != nil {
		return nil, fmt.Errorf("payment amount: %w", err)
	}
	return &p, nil
}
