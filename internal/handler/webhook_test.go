package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robumart/platform/internal/provider"
)

func newTestWebhookHandler() *WebhookHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	crypto := provider.NewCryptoPayProvider("http://localhost", "crypto-token", "", logger)
	paylink := provider.NewPayLinkProvider("http://localhost", "paylink-token", "shop1", logger)
	return NewWebhookHandler(nil, nil, "supplier-key", crypto, paylink, logger)
}

func TestHandleSupplier_RejectsBadSignature(t *testing.T) {
	h := newTestWebhookHandler()

	body := []byte(`{"type":"order","orderId":"o1","status":"Completed","sign":"deadbeef"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/supplier", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleSupplier(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleSupplier_RejectsMalformedBody(t *testing.T) {
	h := newTestWebhookHandler()

	r := httptest.NewRequest(http.MethodPost, "/webhooks/supplier", bytes.NewBufferString(`{broken`))
	w := httptest.NewRecorder()

	h.HandleSupplier(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCryptoPay_RejectsMissingSignature(t *testing.T) {
	h := newTestWebhookHandler()

	body := []byte(`{"update_type":"invoice_paid"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleCryptoPay(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleCryptoPay_RejectsTamperedBody(t *testing.T) {
	h := newTestWebhookHandler()

	// Signature computed over a different body.
	secret := sha256.Sum256([]byte("crypto-token"))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(`{"update_type":"invoice_paid","payload":{"invoice_id":1}}`))
	sig := hex.EncodeToString(mac.Sum(nil))

	body := []byte(`{"update_type":"invoice_paid","payload":{"invoice_id":2}}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
	r.Header.Set("crypto-pay-api-signature", sig)
	w := httptest.NewRecorder()

	h.HandleCryptoPay(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlePayLink_RejectsBadSignature(t *testing.T) {
	h := newTestWebhookHandler()

	body := []byte(`{"Status":"SUCCESS","InvId":"p1","OutSum":"150.00","SignatureValue":"ABC123"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/paylink", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.HandlePayLink(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlePayLink_RejectsMalformedBody(t *testing.T) {
	h := newTestWebhookHandler()

	r := httptest.NewRequest(http.MethodPost, "/webhooks/paylink", bytes.NewBufferString(`not json`))
	w := httptest.NewRecorder()

	h.HandlePayLink(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
