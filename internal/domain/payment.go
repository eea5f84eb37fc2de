package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod tags the channel a top-up went through.
type PaymentMethod string

const (
	MethodCryptoPay   PaymentMethod = "cryptopay"    // invoice-based crypto payments
	MethodPayLink     PaymentMethod = "paylink"      // fiat gateway bills
	MethodExchangeUID PaymentMethod = "exchange_uid" // peer transfers matched by account UID
)

// PaymentStatus tracks the top-up lifecycle. pending → paid happens at most
// once and is the only path by which external value enters the ledger.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether the payment can no longer change state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusExpired || s == PaymentStatusCancelled
}

// Payment represents one top-up attempt through a channel. The ID is the
// provider invoice id for cryptopay, our generated uuid for paylink, and the
// provider transaction id for exchange-uid deposits (which guarantees
// at-most-once insertion across overlapping poll windows).
type Payment struct {
	ID           string          `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Amount       int64           `json:"amount"` // kopecks
	Currency     string          `json:"currency"`
	Method       PaymentMethod   `json:"method"`
	Status       PaymentStatus   `json:"status"`
	InvoiceURL   *string         `json:"invoice_url,omitempty"`
	ProviderData json.RawMessage `json:"provider_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Provider metadata is a tagged union keyed by Method, decoded at the
// boundary instead of carried through the core as untyped data.

// CryptoPayData is the provider blob for invoice-based payments.
type CryptoPayData struct {
	InvoiceID int64  `json:"invoice_id"`
	Asset     string `json:"asset,omitempty"`
	PaidVia   string `json:"paid_via,omitempty"`
	PaidAt    string `json:"paid_at,omitempty"`
}

// PayLinkData is the provider blob for fiat gateway bills.
type PayLinkData struct {
	BillID      string `json:"bill_id"`
	OutSum      string `json:"out_sum,omitempty"`
	Commission  string `json:"commission,omitempty"`
	FinalStatus string `json:"final_status,omitempty"`
}

// ExchangeDepositData is the provider blob for matched peer transfers.
type ExchangeDepositData struct {
	TxID      string `json:"tx_id"`
	FromUID   string `json:"from_uid"`
	Coin      string `json:"coin"`
	AmountUSD string `json:"amount_usd"`
}

// DecodeProviderData decodes the blob according to the payment's method tag.
func (p *Payment) DecodeProviderData(dst any) error {
	if len(p.ProviderData) == 0 {
		return fmt.Errorf("payment %s has no provider data", p.ID)
	}
	if err := json.Unmarshal(p.ProviderData, dst); err != nil {
		return fmt.Errorf("decode %s provider data: %w", p.Method, err)
	}
	return nil
}
