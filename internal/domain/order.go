package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderKind distinguishes the two product types sold by the shop.
type OrderKind string

const (
	OrderKindGamepass  OrderKind = "gamepass"
	OrderKindVipServer OrderKind = "vip_server"
)

// OrderStatus tracks the order lifecycle.
// Transitions: pending → processing → {completed | failed}, with
// processing → cancelled on user/admin request. Terminal states are final.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusCancelled
}

// Order represents one purchase of in-game currency.
// Price and cost are kopecks (numeric(15,0) columns). Price is fixed at
// creation time and never recomputed.
type Order struct {
	ID         uuid.UUID   `json:"id"`
	UserID     uuid.UUID   `json:"user_id"`
	Username   string      `json:"username"` // target game account name
	Kind       OrderKind   `json:"kind"`
	Amount     int64       `json:"amount"` // units of in-game currency
	Price      int64       `json:"price"`  // kopecks held from the user balance
	Cost       int64       `json:"cost"`   // kopecks, supplier cost basis for margin accounting
	Status     OrderStatus `json:"status"`
	UpstreamID *string     `json:"upstream_id,omitempty"` // supplier-assigned order id
	PlaceID    *string     `json:"place_id,omitempty"`
	Notified   bool        `json:"notified"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// RefundSource identifies which path triggered a refund.
type RefundSource string

const (
	RefundSourceOrderCreate RefundSource = "order_create" // create-time validation failure
	RefundSourceWebhook     RefundSource = "webhook"      // supplier callback reported error/cancelled
	RefundSourceAdminCancel RefundSource = "admin_cancel"
	RefundSourceUserCancel  RefundSource = "user_cancel"
	RefundSourceSystem      RefundSource = "system" // reconciliation poller
)

// RefundReason explains why a refund did or did not happen.
type RefundReason string

const (
	RefundOK               RefundReason = "ok"
	RefundOrderNotFound    RefundReason = "order_not_found"
	RefundAlreadyCompleted RefundReason = "already_completed"
	RefundAlreadyTerminal  RefundReason = "already_failed_or_refunded"
)

// RefundResult is the outcome of RefundOrder. A skipped refund is a reported
// no-op, not an error.
type RefundResult struct {
	Refunded bool         `json:"refunded"`
	Reason   RefundReason `json:"reason"`
}

// RefundOptions carries the audit context for a refund.
type RefundOptions struct {
	Source          RefundSource
	InitiatorUserID *uuid.UUID // set when someone other than the owner triggered it
	ExternalStatus  string     // supplier-reported status, if any
	ExternalError   string     // supplier-reported error message, if any
}

// CancelTerminal maps a cancellation to its terminal status. Voluntary
// cancellation is kept distinct from provider-side failure in reporting.
const CancelTerminal = OrderStatusCancelled
