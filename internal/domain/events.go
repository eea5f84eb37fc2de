package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types published through the outbox.
type EventType string

const (
	EventOrderCompleted EventType = "shop.order.completed"
	EventOrderRefunded  EventType = "shop.order.refunded"
	EventOrderCancelled EventType = "shop.order.cancelled"
	EventPaymentPaid    EventType = "shop.payment.paid"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateOrder   AggregateType = "order"
	AggregatePayment AggregateType = "payment"
)

// OutboxDraft is the payload written to the event_outbox table in the same
// transaction as the state change it describes. The outbox consumer publishes
// drafts to Kafka and drives user notifications off them.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewOrderEvent creates the order-lifecycle event for a terminal transition.
func NewOrderEvent(evt EventType, order *Order, refunded bool) OutboxDraft {
	payload, _ := json.Marshal(map[string]any{
		"order_id": order.ID.String(),
		"user_id":  order.UserID.String(),
		"amount":   order.Amount,
		"price":    order.Price,
		"status":   order.Status,
		"refunded": refunded,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateOrder,
		AggregateID:   order.ID.String(),
		EventType:     evt,
		PartitionKey:  order.UserID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewPaymentPaidEvent creates the credit event for a resolved payment.
func NewPaymentPaidEvent(payment *Payment) OutboxDraft {
	payload, _ := json.Marshal(map[string]any{
		"payment_id": payment.ID,
		"user_id":    payment.UserID.String(),
		"amount":     payment.Amount,
		"method":     payment.Method,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregatePayment,
		AggregateID:   payment.ID,
		EventType:     EventPaymentPaid,
		PartitionKey:  payment.UserID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
