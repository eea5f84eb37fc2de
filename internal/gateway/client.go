package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client talks to the fulfillment supplier's merchant API. All calls carry
// the merchant key in the api-key header and observe a request deadline.
type Client struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger
	client  *http.Client
}

// NewClient creates a supplier API client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateGamepassOrder submits a gamepass order. Never retried: the supplier
// may have accepted the order even when the response was lost.
func (c *Client) CreateGamepassOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderData, error) {
	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/gamepass", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreateVipServerOrder submits a VIP server order. Never retried.
func (c *Client) CreateVipServerOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderData, error) {
	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/vip-server", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ResendGamepass asks the supplier to retry delivery of a stuck gamepass
// order, optionally against a different place.
func (c *Client) ResendGamepass(ctx context.Context, orderID string, placeID int64) error {
	body := map[string]any{"orderId": orderID, "placeId": placeID}
	var resp struct {
		Success bool `json:"success"`
	}
	return c.do(ctx, http.MethodPost, "/orders/gamepass/resend", body, &resp)
}

// CancelOrder requests cancellation and returns the supplier's final view of
// the order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*OrderInfo, error) {
	var info OrderInfo
	if err := c.do(ctx, http.MethodPost, "/orders/cancel", map[string]string{"orderId": orderID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetOrderInfo fetches the supplier's current view of an order. Read-only,
// retried on transient failure.
func (c *Client) GetOrderInfo(ctx context.Context, orderID string) (*OrderInfo, error) {
	var info OrderInfo
	err := c.doRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/orders/info", map[string]string{"orderId": orderID}, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetStockSummary fetches coarse availability.
func (c *Client) GetStockSummary(ctx context.Context) (*StockSummary, error) {
	var s StockSummary
	err := c.doRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/shared/stock", nil, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStockDetailed fetches per-bucket inventory with rates.
func (c *Client) GetStockDetailed(ctx context.Context) ([]StockOffer, error) {
	var offers []StockOffer
	err := c.doRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/shared/detailed-stock", nil, &offers)
	})
	if err != nil {
		return nil, err
	}
	return offers, nil
}

// GetBalance fetches our merchant account balance at the supplier.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var b Balance
	err := c.doRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/shared/balance", nil, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// doRetry wraps read-only calls with capped exponential backoff. Only
// transient failures are retried.
func (c *Client) doRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(300*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		var gwErr *Error
		if errors.As(err, &gwErr) && gwErr.Transient() {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Message: "supplier request timed out"}
		}
		return &Error{Kind: KindServer, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: KindServer, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Kind:    classify(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: extractErrorMessage(raw, resp.Status),
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: KindServer, Status: resp.StatusCode,
				Message: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}

// extractErrorMessage pulls a human-readable message out of an error body,
// falling back to the HTTP status line.
func extractErrorMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
	}
	return fallback
}
