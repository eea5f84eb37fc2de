// Package ledger implements the money rules of the shop: holds, refunds
// and credits are conditional single-statement updates composed into the
// caller's transaction, so no code path can observe or create a negative
// balance.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/repository"
)

// Ledger posts balance changes together with their audit records and outbox
// events. All methods run against the DBTX the caller provides; callers own
// transaction boundaries.
type Ledger struct {
	users  repository.UserRepository
	audit  repository.AuditRepository
	outbox repository.OutboxRepository
	logger *slog.Logger
}

// New creates a ledger over the given repositories.
func New(users repository.UserRepository, audit repository.AuditRepository, outbox repository.OutboxRepository, logger *slog.Logger) *Ledger {
	return &Ledger{users: users, audit: audit, outbox: outbox, logger: logger}
}

// Hold debits the order price from the user's balance. The decrement is
// guarded in SQL; insufficient funds surface as a domain error, not a
// negative balance.
func (l *Ledger) Hold(ctx context.Context, db repository.DBTX, userID uuid.UUID, amount int64) error {
	ok, err := l.users.Hold(ctx, db, userID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientBalance()
	}
	return nil
}

// CreditRefund returns the order's held price to its owner and writes the
// refund audit trail. When someone other than the owner initiated the refund
// an extra record is written under the initiator.
func (l *Ledger) CreditRefund(ctx context.Context, db repository.DBTX, order *domain.Order, opts domain.RefundOptions) error {
	if err := l.users.Credit(ctx, db, order.UserID, order.Price); err != nil {
		return fmt.Errorf("refund credit: %w", err)
	}

	details := domain.RefundDetails{
		OrderID:        order.ID.String(),
		Amount:         order.Price,
		Source:         opts.Source,
		ExternalStatus: opts.ExternalStatus,
		ExternalError:  opts.ExternalError,
	}
	if opts.InitiatorUserID != nil {
		details.InitiatorUserID = opts.InitiatorUserID.String()
	}
	// Requested cancellations get their own action so support can tell a
	// voluntary cancel apart from a failure refund.
	action := domain.AuditOrderRefund
	if opts.Source == domain.RefundSourceUserCancel || opts.Source == domain.RefundSourceAdminCancel {
		action = domain.AuditOrderCancelRefund
	}
	if err := l.audit.Insert(ctx, db, order.UserID, action, details); err != nil {
		return err
	}
	if opts.InitiatorUserID != nil && *opts.InitiatorUserID != order.UserID {
		if err := l.audit.Insert(ctx, db, *opts.InitiatorUserID, domain.AuditOrderRefundInitiated, details); err != nil {
			return err
		}
	}

	return l.outbox.Insert(ctx, db, domain.NewOrderEvent(domain.EventOrderRefunded, order, true))
}

// CreditPayment credits a resolved payment to the payer and pays the
// referral bonus when the payer was referred. The caller must already have
// won the pending→paid gate on the payment row.
func (l *Ledger) CreditPayment(ctx context.Context, db repository.DBTX, payment *domain.Payment, s domain.Settings) error {
	user, err := l.users.FindByID(ctx, db, payment.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrNotFound("user", payment.UserID.String())
	}

	if err := l.users.Credit(ctx, db, payment.UserID, payment.Amount); err != nil {
		return fmt.Errorf("payment credit: %w", err)
	}
	if err := l.audit.Insert(ctx, db, payment.UserID, domain.AuditPaymentSuccess, domain.PaymentDetails{
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Method:    payment.Method,
	}); err != nil {
		return err
	}

	if user.ReferrerID != nil && s.ReferralPercent > 0 {
		bonus := domain.BonusKopecks(payment.Amount, s.ReferralPercent)
		if bonus > 0 {
			if err := l.users.CreditReferral(ctx, db, *user.ReferrerID, bonus); err != nil {
				return fmt.Errorf("referral bonus: %w", err)
			}
			if err := l.audit.Insert(ctx, db, *user.ReferrerID, domain.AuditReferralBonus, domain.ReferralBonusDetails{
				PaymentID:  payment.ID,
				FromUserID: payment.UserID.String(),
				Amount:     payment.Amount,
				Bonus:      bonus,
				Method:     payment.Method,
			}); err != nil {
				return err
			}
		}
	}

	return l.outbox.Insert(ctx, db, domain.NewPaymentPaidEvent(payment))
}

// TransferReferral moves earned referral funds into the user's spendable
// balance.
func (l *Ledger) TransferReferral(ctx context.Context, db repository.DBTX, userID uuid.UUID, amount int64) error {
	ok, err := l.users.DebitReferralIf(ctx, db, userID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientBalance()
	}
	if err := l.users.Credit(ctx, db, userID, amount); err != nil {
		return fmt.Errorf("referral transfer credit: %w", err)
	}
	return l.audit.Insert(ctx, db, userID, domain.AuditReferralTransfer, map[string]any{
		"amount": amount,
	})
}
