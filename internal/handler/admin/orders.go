package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/robumart/platform/internal/auth"
	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/handler"
	"github.com/robumart/platform/internal/service"
)

// OrderAdminHandler handles admin order management.
type OrderAdminHandler struct {
	orders *service.OrderService
	users  *service.UserService
}

// NewOrderAdminHandler creates a new OrderAdminHandler.
func NewOrderAdminHandler(orders *service.OrderService, users *service.UserService) *OrderAdminHandler {
	return &OrderAdminHandler{orders: orders, users: users}
}

// RefundInfo handles GET /admin/orders/{id}/refund. It answers the support
// question "was this order ever refunded, and why".
func (h *OrderAdminHandler) RefundInfo(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	rec, err := h.orders.RefundInfo(r.Context(), orderID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if rec == nil {
		handler.RespondJSON(w, http.StatusOK, map[string]any{"refunded": false})
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"refunded": true, "record": rec})
}

// ForceRefund handles POST /admin/orders/{id}/refund. It fails the order and
// returns the held money without consulting the supplier.
func (h *OrderAdminHandler) ForceRefund(w http.ResponseWriter, r *http.Request) {
	admin, err := h.admin(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	result, err := h.orders.RefundOrder(r.Context(), orderID, domain.CancelTerminal, domain.RefundOptions{
		Source:          domain.RefundSourceAdminCancel,
		InitiatorUserID: &admin.ID,
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, result)
}

// Cancel handles POST /admin/orders/{id}/cancel. Unlike ForceRefund this
// goes through the supplier first, so an order that already completed
// upstream is credited instead of refunded.
func (h *OrderAdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	admin, err := h.admin(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	result, err := h.orders.CancelOrder(r.Context(), orderID, admin)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /admin/orders/{id}.
func (h *OrderAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	admin, err := h.admin(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid order id"))
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), orderID, admin); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *OrderAdminHandler) admin(r *http.Request) (*domain.User, error) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		return nil, domain.ErrUnauthorized("no subject in context")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid subject")
	}
	user, err := h.users.GetProfile(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, domain.ErrForbidden("admin role required")
	}
	return user, nil
}
