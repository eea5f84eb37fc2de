package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cryptoPaySign(body []byte, token string) string {
	secret := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCryptoPayVerifyWebhookSignature_Valid(t *testing.T) {
	token := "12345:AAtoken"
	p := NewCryptoPayProvider("", token, "", slog.Default())

	body := []byte(`{"update_id":1,"update_type":"invoice_paid","payload":{"invoice_id":42}}`)
	sig := cryptoPaySign(body, token)

	assert.True(t, p.VerifyWebhookSignature(body, sig))
}

func TestCryptoPayVerifyWebhookSignature_TamperedBody(t *testing.T) {
	token := "12345:AAtoken"
	p := NewCryptoPayProvider("", token, "", slog.Default())

	sig := cryptoPaySign([]byte(`{"invoice_id":42}`), token)

	assert.False(t, p.VerifyWebhookSignature([]byte(`{"invoice_id":43}`), sig))
}

func TestCryptoPayVerifyWebhookSignature_WrongToken(t *testing.T) {
	p := NewCryptoPayProvider("", "real-token", "", slog.Default())

	body := []byte(`{"invoice_id":42}`)
	sig := cryptoPaySign(body, "other-token")

	assert.False(t, p.VerifyWebhookSignature(body, sig))
}

func TestCryptoPayVerifyWebhookSignature_Missing(t *testing.T) {
	p := NewCryptoPayProvider("", "token", "", slog.Default())
	assert.False(t, p.VerifyWebhookSignature([]byte(`{}`), ""))
}

func TestCryptoPayCreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/createInvoice", r.URL.Path)
		assert.Equal(t, "token-1", r.Header.Get("Crypto-Pay-API-Token"))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"invoice_id":42,"status":"active","bot_invoice_url":"https://t.me/pay/42"}}`))
	}))
	defer srv.Close()

	p := NewCryptoPayProvider(srv.URL, "token-1", "USDT,TON", slog.Default())
	inv, err := p.CreateInvoice(context.Background(), 150.00, "Balance top-up")
	require.NoError(t, err)
	assert.Equal(t, int64(42), inv.InvoiceID)
	assert.Equal(t, "active", inv.Status)
	assert.Equal(t, "https://t.me/pay/42", inv.BotInvoiceURL)
}

func TestCryptoPayAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":400,"name":"AMOUNT_TOO_SMALL"}}`))
	}))
	defer srv.Close()

	p := NewCryptoPayProvider(srv.URL, "token-1", "", slog.Default())
	_, err := p.CreateInvoice(context.Background(), 0.01, "tiny")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMOUNT_TOO_SMALL")
}
