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

type orderRepo struct{}

// NewOrderRepository returns a pgx-backed OrderRepository.
func NewOrderRepository() OrderRepository {
	return &orderRepo{}
}

const orderColumns = `id, user_id, username, kind, amount, price, cost, status,
	upstream_id, place_id, notified, created_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, db DBTX, o *domain.Order) error {
	_, err := db.Exec(ctx, `
		INSERT INTO orders (id, user_id, username, kind, amount, price, cost, status,
			upstream_id, place_id, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, o.Username, string(o.Kind), o.Amount,
		infra.Int64ToNumeric(o.Price), infra.Int64ToNumeric(o.Cost),
		string(o.Status), o.UpstreamID, o.PlaceID, o.Notified,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Order, error) {
	row := db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *orderRepo) FindByUpstreamID(ctx context.Context, db DBTX, upstreamID string) (*domain.Order, error) {
	row := db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE upstream_id = $1`, upstreamID)
	return scanOrder(row)
}

// UpdateStatusIfActive carries the terminal guard in SQL so a webhook, the
// poller, and a cancel request racing on the same order produce exactly one
// winner.
func (r *orderRepo) UpdateStatusIfActive(ctx context.Context, db DBTX, id uuid.UUID, status domain.OrderStatus) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')`,
		id, string(status))
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) SetUpstreamID(ctx context.Context, db DBTX, id uuid.UUID, upstreamID string) error {
	_, err := db.Exec(ctx, `
		UPDATE orders SET upstream_id = $2, updated_at = now() WHERE id = $1`,
		id, upstreamID)
	if err != nil {
		return fmt.Errorf("set upstream id: %w", err)
	}
	return nil
}

func (r *orderRepo) CountActiveByUser(ctx context.Context, db DBTX, userID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE user_id = $1 AND status IN ('pending', 'processing')`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active orders: %w", err)
	}
	return count, nil
}

// ClaimStaleProcessing selects the batch and re-stamps updated_at in one
// statement. The re-stamp pushes claimed rows out of the stale window so
// overlapping poller runs do not check the same orders twice; SKIP LOCKED
// covers runs that overlap inside one interval.
func (r *orderRepo) ClaimStaleProcessing(ctx context.Context, db DBTX, staleAfter time.Duration, limit int) ([]domain.Order, error) {
	rows, err := db.Query(ctx, `
		UPDATE orders SET updated_at = now()
		WHERE id IN (
			SELECT id FROM orders
			WHERE status = 'processing' AND updated_at < now() - $1::interval
			ORDER BY updated_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+orderColumns,
		fmt.Sprintf("%d seconds", int(staleAfter.Seconds())), limit)
	if err != nil {
		return nil, fmt.Errorf("claim stale orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) MarkNotified(ctx context.Context, db DBTX, id uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE orders SET notified = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark order notified: %w", err)
	}
	return nil
}

func (r *orderRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("order", id.String())
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o, err := scanOrderRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func scanOrderRow(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var kind, status string
	var priceNum, costNum pgtype.Numeric

	err := row.Scan(&o.ID, &o.UserID, &o.Username, &kind, &o.Amount,
		&priceNum, &costNum, &status, &o.UpstreamID, &o.PlaceID,
		&o.Notified, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	if o.Price, err = infra.NumericToInt64(priceNum); err != nil {
		return nil, fmt.Errorf("order price: %w", err)
	}
	if o.Cost, err = infra.NumericToInt64(costNum); err != nil {
		return nil, fmt.Errorf("order cost: %w", err)
	}
	return &o, nil
}
