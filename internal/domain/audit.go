package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit action tags. The audit log is the system of record for "was this
// already refunded": refund lookups go through action tag + details
// containment, there is no dedicated refund table.
const (
	AuditOrderRefund          = "order_refund"
	AuditOrderRefundInitiated = "order_refund_initiated"
	AuditOrderCancelRefund    = "order_cancel_refund"
	AuditPaymentSuccess       = "payment_success"
	AuditReferralBonus        = "referral_bonus"
	AuditReferralTransfer     = "referral_transfer"
	AuditAdminOrderDelete     = "admin_order_delete"
)

// AuditRecord is one append-only row in audit_logs.
type AuditRecord struct {
	ID        int64           `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// RefundDetails is the details payload written for every order refund.
type RefundDetails struct {
	OrderID         string       `json:"orderId"`
	Amount          int64        `json:"amount"`
	Source          RefundSource `json:"source"`
	InitiatorUserID string       `json:"initiatorUserId,omitempty"`
	ExternalStatus  string       `json:"externalStatus,omitempty"`
	ExternalError   string       `json:"externalError,omitempty"`
}

// PaymentDetails is the details payload written when a payment is credited.
type PaymentDetails struct {
	PaymentID string        `json:"paymentId"`
	Amount    int64         `json:"amount"`
	Method    PaymentMethod `json:"method"`
}

// ReferralBonusDetails is the details payload for a referrer credit.
type ReferralBonusDetails struct {
	PaymentID  string        `json:"paymentId"`
	FromUserID string        `json:"fromUserId"`
	Amount     int64         `json:"amount"`
	Bonus      int64         `json:"bonus"`
	Method     PaymentMethod `json:"method"`
}
