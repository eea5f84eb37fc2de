package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PayLinkProvider talks to the fiat payment gateway. Bills are created over
// form-encoded POSTs; the gateway confirms payment with a signed postback.
type PayLinkProvider struct {
	baseURL string
	token   string
	shopID  string
	logger  *slog.Logger
	client  *http.Client
}

// NewPayLinkProvider creates a fiat gateway client.
func NewPayLinkProvider(baseURL, token, shopID string, logger *slog.Logger) *PayLinkProvider {
	return &PayLinkProvider{
		baseURL: baseURL,
		token:   token,
		shopID:  shopID,
		logger:  logger,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Bill is the created payment link.
type Bill struct {
	Success     string `json:"success"`
	LinkURL     string `json:"link_url"`
	LinkPageURL string `json:"link_page_url"`
	BillID      string `json:"bill_id"`
}

// Postback is the gateway's payment notification. InvId carries our payment
// id; SignatureValue covers OutSum and InvId.
type Postback struct {
	Status         string `json:"Status"`
	InvID          string `json:"InvId"`
	Commission     string `json:"Commission"`
	CurrencyIn     string `json:"CurrencyIn"`
	OutSum         string `json:"OutSum"`
	Custom         string `json:"custom,omitempty"`
	SignatureValue string `json:"SignatureValue"`
}

// Succeeded reports whether the postback confirms payment.
func (pb *Postback) Succeeded() bool { return pb.Status == "SUCCESS" }

// CreateBill creates a payment link for the given ruble amount. orderID is
// echoed back as InvId in the postback.
func (p *PayLinkProvider) CreateBill(ctx context.Context, amountRub float64, orderID, description string) (*Bill, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatFloat(amountRub, 'f', 2, 64))
	form.Set("shop_id", p.shopID)
	form.Set("order_id", orderID)
	form.Set("currency_in", "RUB")
	if description != "" {
		form.Set("description", description)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/bill/create",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build bill request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paylink bill create: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paylink bill create: status %d", resp.StatusCode)
	}

	var bill Bill
	if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
		return nil, fmt.Errorf("paylink bill create: decode: %w", err)
	}
	if bill.Success == "false" {
		return nil, fmt.Errorf("paylink bill create: rejected")
	}
	return &bill, nil
}

// VerifyPostback checks the postback signature:
// uppercase MD5("OutSum:InvId:token") compared case-insensitively.
func (p *PayLinkProvider) VerifyPostback(pb *Postback) bool {
	if pb.SignatureValue == "" {
		return false
	}
	sum := md5.Sum([]byte(pb.OutSum + ":" + pb.InvID + ":" + p.token))
	expected := strings.ToUpper(hex.EncodeToString(sum[:]))
	return strings.EqualFold(expected, pb.SignatureValue)
}
