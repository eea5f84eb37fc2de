package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/provider"
	"github.com/robumart/platform/internal/service"
)

// WebhookHandler handles supplier and payment-provider callbacks.
type WebhookHandler struct {
	orders         *service.OrderService
	payments       *service.PaymentService
	supplierAPIKey string
	crypto         *provider.CryptoPayProvider
	paylink        *provider.PayLinkProvider
	logger         *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(
	orders *service.OrderService,
	payments *service.PaymentService,
	supplierAPIKey string,
	crypto *provider.CryptoPayProvider,
	paylink *provider.PayLinkProvider,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		orders:         orders,
		payments:       payments,
		supplierAPIKey: supplierAPIKey,
		crypto:         crypto,
		paylink:        paylink,
		logger:         logger,
	}
}

// HandleSupplier handles POST /webhooks/supplier.
// IMPORTANT: This handler must receive the raw request body (no JSON middleware parsing).
func (h *WebhookHandler) HandleSupplier(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		h.logger.Error("read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var wh gateway.Webhook
	if err := json.Unmarshal(body, &wh); err != nil {
		h.logger.Warn("malformed supplier webhook", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ok, err := gateway.VerifyWebhook(body, wh.Sign, h.supplierAPIKey)
	if err != nil || !ok {
		h.logger.Warn("supplier webhook signature rejected", "order_id", wh.OrderID, "error", err)
		RespondError(w, domain.ErrSignatureInvalid("supplier"))
		return
	}

	if err := h.orders.HandleSupplierWebhook(r.Context(), &wh); err != nil {
		h.logger.Error("process supplier webhook", "order_id", wh.OrderID, "error", err)
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleCryptoPay handles POST /webhooks/cryptopay.
// The signature covers the raw body, so it is read before any decoding.
func (h *WebhookHandler) HandleCryptoPay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("crypto-pay-api-signature")
	if sig == "" || !h.crypto.VerifyWebhookSignature(body, sig) {
		h.logger.Warn("cryptopay webhook signature rejected")
		RespondError(w, domain.ErrSignatureInvalid("cryptopay"))
		return
	}

	var update provider.InvoiceUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.Warn("malformed cryptopay webhook", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.payments.HandleCryptoPayWebhook(r.Context(), &update); err != nil {
		h.logger.Error("process cryptopay webhook", "invoice_id", update.Payload.InvoiceID, "error", err)
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandlePayLink handles POST /webhooks/paylink.
func (h *WebhookHandler) HandlePayLink(w http.ResponseWriter, r *http.Request) {
	var pb provider.Postback
	if err := DecodeJSON(r, &pb); err != nil {
		h.logger.Warn("malformed paylink postback", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !h.paylink.VerifyPostback(&pb) {
		h.logger.Warn("paylink postback signature rejected", "inv_id", pb.InvID)
		RespondError(w, domain.ErrSignatureInvalid("paylink"))
		return
	}

	if err := h.payments.HandlePayLinkPostback(r.Context(), &pb); err != nil {
		h.logger.Error("process paylink postback", "inv_id", pb.InvID, "error", err)
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
