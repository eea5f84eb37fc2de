package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/service"
)

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	orders *service.OrderService
	users  *service.UserService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *service.OrderService, users *service.UserService) *OrderHandler {
	return &OrderHandler{orders: orders, users: users}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req service.CreateOrderRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), userID, req)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, order)
}

// ListMy handles GET /orders/my.
func (h *OrderHandler) ListMy(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), userID, parseLimit(r, 20, 100))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	requester, err := h.requester(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID, requester)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, order)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requester, err := h.requester(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	result, err := h.orders.CancelOrder(r.Context(), orderID, requester)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// Resend handles POST /orders/{id}/resend.
func (h *OrderHandler) Resend(w http.ResponseWriter, r *http.Request) {
	requester, err := h.requester(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	var input struct {
		PlaceID string `json:"place_id"`
	}
	// Body is optional: without a place id the stored one is reused.
	_ = DecodeJSON(r, &input)

	if err := h.orders.ResendOrder(r.Context(), orderID, requester, input.PlaceID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "resent"})
}

func (h *OrderHandler) requester(r *http.Request) (*domain.User, error) {
	userID, err := userIDFromContext(r)
	if err != nil {
		return nil, err
	}
	return h.users.GetProfile(r.Context(), userID)
}

// parseLimit reads the limit query param, clamped to (0, max].
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}
