package admin

import (
	"net/http"

	"github.com/robumart/platform/internal/handler"
	"github.com/robumart/platform/internal/service"
)

// ExchangeAdminHandler lets an operator trigger the exchange deposit sync on
// demand, ahead of the scheduled run.
type ExchangeAdminHandler struct {
	reconcile *service.ReconcileService
}

// NewExchangeAdminHandler creates a new ExchangeAdminHandler.
func NewExchangeAdminHandler(reconcile *service.ReconcileService) *ExchangeAdminHandler {
	return &ExchangeAdminHandler{reconcile: reconcile}
}

// Sync handles POST /admin/exchange/sync.
func (h *ExchangeAdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.SyncExchangeDeposits(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, report)
}
