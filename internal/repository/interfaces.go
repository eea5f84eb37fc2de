package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/robumart/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// UserRepository provides access to the users table.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, db DBTX, user *domain.User) error

	// FindByID returns a user by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error)

	// FindByTelegramID returns a user by Telegram account id.
	FindByTelegramID(ctx context.Context, db DBTX, telegramID int64) (*domain.User, error)

	// FindByExchangeUID returns the user who linked the given exchange UID.
	FindByExchangeUID(ctx context.Context, db DBTX, uid string) (*domain.User, error)

	// SetExchangeUID links an exchange UID to the user for deposit matching.
	SetExchangeUID(ctx context.Context, db DBTX, id uuid.UUID, uid string) error

	// Hold atomically decrements the balance iff it covers the amount.
	// Returns false when the balance is insufficient; no row is changed.
	Hold(ctx context.Context, db DBTX, id uuid.UUID, amount int64) (bool, error)

	// Credit atomically increments the balance.
	Credit(ctx context.Context, db DBTX, id uuid.UUID, amount int64) error

	// CreditReferral atomically increments the referral balance.
	CreditReferral(ctx context.Context, db DBTX, id uuid.UUID, amount int64) error

	// DebitReferralIf atomically decrements the referral balance iff it covers
	// the amount. Returns false when insufficient.
	DebitReferralIf(ctx context.Context, db DBTX, id uuid.UUID, amount int64) (bool, error)

	// ListReferrals returns the users referred by the given user.
	ListReferrals(ctx context.Context, db DBTX, referrerID uuid.UUID) ([]domain.User, error)
}

// OrderRepository provides access to the orders table.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, db DBTX, order *domain.Order) error

	// FindByID returns an order by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Order, error)

	// FindByUpstreamID returns the order linked to a supplier order id.
	FindByUpstreamID(ctx context.Context, db DBTX, upstreamID string) (*domain.Order, error)

	// UpdateStatusIfActive moves the order to the given status only if its
	// current status is not terminal. Returns false when the guard failed.
	UpdateStatusIfActive(ctx context.Context, db DBTX, id uuid.UUID, status domain.OrderStatus) (bool, error)

	// SetUpstreamID records the supplier-assigned order id.
	SetUpstreamID(ctx context.Context, db DBTX, id uuid.UUID, upstreamID string) error

	// CountActiveByUser counts the user's non-terminal orders.
	CountActiveByUser(ctx context.Context, db DBTX, userID uuid.UUID) (int, error)

	// ClaimStaleProcessing returns up to limit processing orders untouched for
	// longer than staleAfter, re-stamping updated_at in the same statement so
	// concurrent pollers skip them.
	ClaimStaleProcessing(ctx context.Context, db DBTX, staleAfter time.Duration, limit int) ([]domain.Order, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.Order, error)

	// MarkNotified flags the order once its terminal event has been delivered.
	MarkNotified(ctx context.Context, db DBTX, id uuid.UUID) error

	// Delete removes an order (admin cleanup only).
	Delete(ctx context.Context, db DBTX, id uuid.UUID) error
}

// PaymentRepository provides access to the payments table.
type PaymentRepository interface {
	// Create inserts a new pending payment.
	Create(ctx context.Context, db DBTX, payment *domain.Payment) error

	// FindByID returns a payment by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Payment, error)

	// MarkPaid flips pending → paid and merges provider data. Returns false
	// when the payment was not pending; this is the only credit gate.
	MarkPaid(ctx context.Context, db DBTX, id string, providerData []byte) (bool, error)

	// MarkTerminalIfPending flips pending → the given terminal status and
	// merges provider data. Returns false when the payment was not pending.
	MarkTerminalIfPending(ctx context.Context, db DBTX, id string, status domain.PaymentStatus, providerData []byte) (bool, error)

	// ExpirePendingOlderThan moves stale pending payments to expired.
	// Returns the number of rows changed.
	ExpirePendingOlderThan(ctx context.Context, db DBTX, cutoff time.Time) (int64, error)

	// InsertPaidIfAbsent inserts an already-paid payment keyed by provider
	// transaction id. Returns false if a payment with that id exists.
	InsertPaidIfAbsent(ctx context.Context, db DBTX, payment *domain.Payment) (bool, error)

	// ListByUser returns the user's payments, newest first.
	ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.Payment, error)
}

// AuditRepository provides access to the append-only audit_logs table.
type AuditRepository interface {
	// Insert appends an audit record. details is marshalled to JSON.
	Insert(ctx context.Context, db DBTX, userID uuid.UUID, action string, details any) error

	// FindOrderRefund returns the refund record for the order, if any,
	// using JSONB containment on the details column.
	FindOrderRefund(ctx context.Context, db DBTX, orderID uuid.UUID) (*domain.AuditRecord, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event within the caller's transaction.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error
}
