package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// CryptoPayProvider talks to the crypto invoice service. Invoices are created
// in fiat; the payer picks an accepted asset at pay time.
type CryptoPayProvider struct {
	baseURL string
	token   string
	assets  string // comma-separated accepted assets, empty = provider default
	logger  *slog.Logger
	client  *http.Client
}

// NewCryptoPayProvider creates a crypto invoice client.
func NewCryptoPayProvider(baseURL, token, assets string, logger *slog.Logger) *CryptoPayProvider {
	return &CryptoPayProvider{
		baseURL: baseURL,
		token:   token,
		assets:  assets,
		logger:  logger,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Invoice is the provider's invoice object, subset of fields we use.
type Invoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"` // active, paid, expired
	PayURL        string `json:"pay_url"`
	BotInvoiceURL string `json:"bot_invoice_url"`
	Asset         string `json:"asset"`
	PaidAsset     string `json:"paid_asset"`
	PaidAt        string `json:"paid_at"`
	PaidBtnName   string `json:"paid_btn_name"`
}

// ExchangeRate is one entry from the provider's rate table.
type ExchangeRate struct {
	IsValid bool   `json:"is_valid"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Rate    string `json:"rate"`
}

// InvoiceUpdate is the webhook body sent when an invoice changes state.
type InvoiceUpdate struct {
	UpdateID   int64   `json:"update_id"`
	UpdateType string  `json:"update_type"` // invoice_paid
	Payload    Invoice `json:"payload"`
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// CreateInvoice creates a fiat-denominated invoice.
func (p *CryptoPayProvider) CreateInvoice(ctx context.Context, amountRub float64, description string) (*Invoice, error) {
	params := map[string]any{
		"amount":        strconv.FormatFloat(amountRub, 'f', 2, 64),
		"currency_type": "fiat",
		"fiat":          "RUB",
		"description":   description,
	}
	if p.assets != "" {
		params["accepted_assets"] = p.assets
	}

	var inv Invoice
	if err := p.call(ctx, "createInvoice", params, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvoice fetches one invoice by id.
func (p *CryptoPayProvider) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	var result struct {
		Items []Invoice `json:"items"`
	}
	err := p.call(ctx, "getInvoices", map[string]any{
		"invoice_ids": strconv.FormatInt(invoiceID, 10),
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("invoice %d not found", invoiceID)
	}
	return &result.Items[0], nil
}

// GetExchangeRates fetches the provider's crypto/fiat rate table.
func (p *CryptoPayProvider) GetExchangeRates(ctx context.Context) ([]ExchangeRate, error) {
	var rates []ExchangeRate
	if err := p.call(ctx, "getExchangeRates", nil, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// VerifyWebhookSignature checks the update signature: HMAC-SHA256 over the
// raw body with key SHA256(api token), hex, from the crypto-pay-api-signature
// header.
func (p *CryptoPayProvider) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	secret := sha256.Sum256([]byte(p.token))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (p *CryptoPayProvider) call(ctx context.Context, method string, params map[string]any, out any) error {
	var body []byte
	if params != nil {
		var err error
		if body, err = json.Marshal(params); err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
	} else {
		body = []byte(`{}`)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Crypto-Pay-API-Token", p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cryptopay %s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("cryptopay %s: decode response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("cryptopay %s: api error: %s", method, string(api.Error))
	}
	if out != nil {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("cryptopay %s: decode result: %w", method, err)
		}
	}
	return nil
}
