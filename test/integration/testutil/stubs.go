//go:build integration

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/provider"
)

// SupplierStub impersonates the upstream supplier API. Behavior is settable
// per test; the zero configuration accepts every order.
type SupplierStub struct {
	Server *httptest.Server

	mu             sync.Mutex
	createRequests []gateway.CreateOrderRequest
	createStatus   int                    // non-zero forces this HTTP status on create
	infoStatus     gateway.UpstreamStatus // status reported by /orders/info and /orders/cancel
	infoNotFound   bool
	stock          int64
}

// NewSupplierStub starts a supplier stub with a million units in stock.
func NewSupplierStub(t *testing.T) *SupplierStub {
	t.Helper()
	s := &SupplierStub{
		infoStatus: gateway.StatusProcessing,
		stock:      1_000_000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *SupplierStub) Close() { s.Server.Close() }

// FailCreatesWith makes order creation respond with the given HTTP status.
func (s *SupplierStub) FailCreatesWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createStatus = status
}

// ReportStatus sets the order status returned by info and cancel.
func (s *SupplierStub) ReportStatus(status gateway.UpstreamStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoStatus = status
	s.infoNotFound = false
}

// ReportNotFound makes /orders/info and /orders/cancel return 404.
func (s *SupplierStub) ReportNotFound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoNotFound = true
}

// SetStock sets the advertised available stock.
func (s *SupplierStub) SetStock(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = n
}

// CreateRequests returns the order-creation requests received so far.
func (s *SupplierStub) CreateRequests() []gateway.CreateOrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.CreateOrderRequest, len(s.createRequests))
	copy(out, s.createRequests)
	return out
}

func (s *SupplierStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/orders/gamepass", "/orders/vip-server":
		var req gateway.CreateOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.createRequests = append(s.createRequests, req)

		if s.createStatus != 0 {
			w.WriteHeader(s.createStatus)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "stub rejection"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": gateway.CreateOrderData{
				// The supplier assigns its own id, distinct from ours.
				OrderID:  "rbx-" + req.OrderID,
				Username: req.Username,
				Amount:   req.Amount,
				Status:   gateway.StatusPending,
			},
		})

	case "/orders/gamepass/resend":
		json.NewEncoder(w).Encode(map[string]bool{"success": true})

	case "/orders/info", "/orders/cancel":
		if s.infoNotFound {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "order not found"})
			return
		}
		var req struct {
			OrderID string `json:"orderId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		status := s.infoStatus
		if r.URL.Path == "/orders/cancel" && status == gateway.StatusProcessing {
			status = gateway.StatusCancelled
		}
		json.NewEncoder(w).Encode(gateway.OrderInfo{
			Type:   gateway.TypeGamepass,
			UUID:   "upstream-" + req.OrderID,
			Status: status,
		})

	case "/shared/stock":
		json.NewEncoder(w).Encode(gateway.StockSummary{
			Available:    s.stock,
			MaxAvailable: s.stock,
		})

	case "/shared/detailed-stock":
		json.NewEncoder(w).Encode([]gateway.StockOffer{})

	case "/shared/balance":
		json.NewEncoder(w).Encode(gateway.Balance{Balance: 100})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// CryptoPayStub impersonates the crypto invoice provider.
type CryptoPayStub struct {
	Server *httptest.Server

	mu            sync.Mutex
	nextInvoiceID int64
	statuses      map[int64]string
}

// NewCryptoPayStub starts a crypto provider stub.
func NewCryptoPayStub(t *testing.T) *CryptoPayStub {
	t.Helper()
	s := &CryptoPayStub{
		nextInvoiceID: 1000,
		statuses:      map[int64]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *CryptoPayStub) Close() { s.Server.Close() }

// MarkPaid flips a stubbed invoice to paid for subsequent getInvoices calls.
func (s *CryptoPayStub) MarkPaid(invoiceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[invoiceID] = "paid"
}

// MarkExpired flips a stubbed invoice to expired.
func (s *CryptoPayStub) MarkExpired(invoiceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[invoiceID] = "expired"
}

func (s *CryptoPayStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/createInvoice":
		id := s.nextInvoiceID
		s.nextInvoiceID++
		s.statuses[id] = "active"
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"invoice_id":      id,
				"status":          "active",
				"pay_url":         "https://pay.stub/invoice",
				"bot_invoice_url": "https://t.me/stub_invoice",
			},
		})

	case "/getInvoices":
		var req struct {
			InvoiceIDs string `json:"invoice_ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var id int64
		if n, err := json.Number(req.InvoiceIDs).Int64(); err == nil {
			id = n
		}
		status, ok := s.statuses[id]
		items := []map[string]any{}
		if ok {
			items = append(items, map[string]any{"invoice_id": id, "status": status})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"items": items},
		})

	case "/getExchangeRates":
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{"is_valid": true, "source": "USDT", "target": "RUB", "rate": "90"},
			},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ExchangeStub impersonates the exchange's internal-deposit query API.
type ExchangeStub struct {
	Server *httptest.Server

	mu       sync.Mutex
	deposits []provider.InternalDeposit
}

// NewExchangeStub starts an exchange stub with no deposit records.
func NewExchangeStub(t *testing.T) *ExchangeStub {
	t.Helper()
	s := &ExchangeStub{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *ExchangeStub) Close() { s.Server.Close() }

// AddDeposit queues a deposit record for subsequent listing calls.
func (s *ExchangeStub) AddDeposit(d provider.InternalDeposit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits = append(s.deposits, d)
}

func (s *ExchangeStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path != "/v5/asset/deposit/query-internal-record" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"retCode": 0,
		"retMsg":  "OK",
		"result": map[string]any{
			"rows":           s.deposits,
			"nextPageCursor": "",
		},
	})
}
