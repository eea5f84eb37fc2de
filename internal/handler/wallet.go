package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/service"
)

// WalletHandler handles balance top-ups and payment history.
type WalletHandler struct {
	payments *service.PaymentService
	users    *service.UserService
	pricing  service.PricingOracle
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(payments *service.PaymentService, users *service.UserService, pricing service.PricingOracle) *WalletHandler {
	return &WalletHandler{payments: payments, users: users, pricing: pricing}
}

// Rate handles GET /wallet/rate: the current sell rate and available stock,
// what the storefront needs to render a price.
func (h *WalletHandler) Rate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.pricing.SellRate(r.Context())
	if err != nil {
		RespondError(w, domain.ErrInternal("load sell rate", err))
		return
	}
	stock, err := h.pricing.AvailableStock(r.Context())
	if err != nil {
		// Rate alone is still useful when the stock feed is down.
		stock = 0
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"rate":  rate,
		"stock": stock,
	})
}

// topUpRequest is the shape of the top-up endpoints. Amount is kopecks.
type topUpRequest struct {
	Amount int64 `json:"amount"`
}

// TopUpCrypto handles POST /wallet/topup.
func (h *WalletHandler) TopUpCrypto(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req topUpRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	payment, err := h.payments.CreateCryptoInvoice(r.Context(), userID, req.Amount)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, payment)
}

// TopUpPayLink handles POST /wallet/bill.
func (h *WalletHandler) TopUpPayLink(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req topUpRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	payment, err := h.payments.CreatePayLinkBill(r.Context(), userID, req.Amount)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, payment)
}

// GetPayment handles GET /wallet/payments/{id}.
func (h *WalletHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	requester, err := h.requester(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, payment)
}

// CheckPayment handles GET /wallet/status/{id}. It polls the
// provider for pending crypto invoices so a user stuck waiting for a webhook
// can force resolution.
func (h *WalletHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	requester, err := h.requester(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	payment, err := h.payments.CheckPayment(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, payment)
}

// History handles GET /wallet/history.
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	payments, err := h.payments.History(r.Context(), userID, parseLimit(r, 20, 100))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *WalletHandler) requester(r *http.Request) (*domain.User, error) {
	userID, err := userIDFromContext(r)
	if err != nil {
		return nil, err
	}
	return h.users.GetProfile(r.Context(), userID)
}
