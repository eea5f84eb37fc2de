package handler

import (
	"log/slog"
	"net/http"

	"github.com/robumart/platform/internal/service"
)

// CronHandler exposes the reconciliation jobs as authenticated HTTP hooks so
// an external scheduler can drive them alongside the in-process poller.
type CronHandler struct {
	reconcile *service.ReconcileService
	logger    *slog.Logger
}

// NewCronHandler creates a new CronHandler.
func NewCronHandler(reconcile *service.ReconcileService, logger *slog.Logger) *CronHandler {
	return &CronHandler{reconcile: reconcile, logger: logger}
}

// CheckOrders handles POST /cron/check-orders.
func (h *CronHandler) CheckOrders(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.ScanStaleOrders(r.Context())
	if err != nil {
		h.logger.Error("scan stale orders", "error", err)
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

// CleanupPayments handles POST /cron/cleanup-payments.
func (h *CronHandler) CleanupPayments(w http.ResponseWriter, r *http.Request) {
	expired, err := h.reconcile.ExpireStalePayments(r.Context())
	if err != nil {
		h.logger.Error("expire stale payments", "error", err)
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int64{"expired": expired})
}

// SyncExchange handles POST /cron/sync-exchange.
func (h *CronHandler) SyncExchange(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.SyncExchangeDeposits(r.Context())
	if err != nil {
		h.logger.Error("sync exchange deposits", "error", err)
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}
