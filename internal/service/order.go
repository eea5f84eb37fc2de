package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/ledger"
	"github.com/robumart/platform/internal/repository"
)

// SupplierGateway is the slice of the supplier client the order flow needs.
type SupplierGateway interface {
	CreateGamepassOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.CreateOrderData, error)
	CreateVipServerOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.CreateOrderData, error)
	ResendGamepass(ctx context.Context, orderID string, placeID int64) error
	CancelOrder(ctx context.Context, orderID string) (*gateway.OrderInfo, error)
	GetOrderInfo(ctx context.Context, orderID string) (*gateway.OrderInfo, error)
}

// PricingOracle is the slice of the pricing oracle the order flow needs.
type PricingOracle interface {
	SellRate(ctx context.Context) (float64, error)
	CostRate(ctx context.Context) (float64, error)
	AvailableStock(ctx context.Context) (int64, error)
}

// OrderService orchestrates the order lifecycle: hold, submit, and the
// single refund chokepoint every failure path funnels through.
type OrderService struct {
	pool     *pgxpool.Pool
	orders   repository.OrderRepository
	users    repository.UserRepository
	audit    repository.AuditRepository
	outbox   repository.OutboxRepository
	ledger   *ledger.Ledger
	supplier SupplierGateway
	pricing  PricingOracle
	settings domain.SettingsSource
	logger   *slog.Logger
}

// NewOrderService creates an OrderService.
func NewOrderService(
	pool *pgxpool.Pool,
	orders repository.OrderRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	outbox repository.OutboxRepository,
	ldg *ledger.Ledger,
	supplier SupplierGateway,
	pricing PricingOracle,
	settings domain.SettingsSource,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		pool:     pool,
		orders:   orders,
		users:    users,
		audit:    audit,
		outbox:   outbox,
		ledger:   ldg,
		supplier: supplier,
		pricing:  pricing,
		settings: settings,
		logger:   logger,
	}
}

// CreateOrderRequest is the user's purchase request.
type CreateOrderRequest struct {
	Kind     domain.OrderKind `json:"kind"`
	Username string           `json:"username"`
	Amount   int64            `json:"amount"`
	PlaceID  string           `json:"place_id"`
}

// CreateOrder validates the request, holds the price, persists the order and
// submits it to the supplier. The order row reaches the database before the
// supplier is contacted, so a crash mid-call leaves a reconcilable
// processing order instead of a silently lost hold.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*domain.Order, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, domain.ErrInternal("load settings", err)
	}
	if settings.Maintenance {
		return nil, domain.ErrMaintenance()
	}

	user, err := s.users.FindByID(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("load user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", userID.String())
	}
	if user.IsBanned {
		return nil, domain.ErrAccountBanned()
	}

	if err := domain.ValidateOrderKind(req.Kind); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateUsername(req.Kind, req.Username); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateOrderAmount(req.Amount, settings); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	placeID, err := domain.NormalizePlaceID(req.PlaceID)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	active, err := s.orders.CountActiveByUser(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("count active orders", err)
	}
	if active >= settings.MaxActiveOrders {
		return nil, domain.ErrTooManyActiveOrders(settings.MaxActiveOrders)
	}

	available, err := s.pricing.AvailableStock(ctx)
	if err != nil {
		s.logger.Warn("stock check unavailable, proceeding", "error", err)
	} else if available < req.Amount {
		return nil, domain.ErrOutOfStock()
	}

	rate, err := s.pricing.SellRate(ctx)
	if err != nil {
		return nil, domain.ErrInternal("resolve rate", err)
	}
	costRate, err := s.pricing.CostRate(ctx)
	if err != nil {
		costRate = settings.BuyRate
	}

	order := &domain.Order{
		ID:       uuid.New(),
		UserID:   userID,
		Username: req.Username,
		Kind:     req.Kind,
		Amount:   req.Amount,
		Price:    domain.PriceKopecks(req.Amount, rate),
		Cost:     domain.PriceKopecks(req.Amount, costRate),
		Status:   domain.OrderStatusProcessing,
		PlaceID:  &placeID,
	}

	// Hold and order row commit together before the supplier call.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ledger.Hold(ctx, tx, userID, order.Price); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, tx, order); err != nil {
		return nil, domain.ErrInternal("persist order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit order", err)
	}

	s.logger.Info("order created",
		"order_id", order.ID, "user_id", userID, "kind", order.Kind,
		"amount", order.Amount, "price", domain.FormatRubles(order.Price))

	if err := s.submitToSupplier(ctx, order, placeID); err != nil {
		return nil, err
	}
	return order, nil
}

// submitToSupplier sends the order upstream and sorts failures into
// refund-now versus leave-for-the-poller.
func (s *OrderService) submitToSupplier(ctx context.Context, order *domain.Order, placeID string) error {
	pid, _ := strconv.ParseInt(placeID, 10, 64)
	req := gateway.CreateOrderRequest{
		OrderID:  order.ID.String(),
		Username: order.Username,
		Amount:   order.Amount,
		PlaceID:  pid,
	}

	var created *gateway.CreateOrderData
	var err error
	if order.Kind == domain.OrderKindVipServer {
		created, err = s.supplier.CreateVipServerOrder(ctx, req)
	} else {
		created, err = s.supplier.CreateGamepassOrder(ctx, req)
	}
	if err == nil {
		if created != nil && created.OrderID != "" {
			// The supplier's own id; webhooks may name the order by it.
			if uerr := s.orders.SetUpstreamID(ctx, s.pool, order.ID, created.OrderID); uerr != nil {
				s.logger.Warn("persist upstream id failed", "order_id", order.ID, "error", uerr)
			} else {
				order.UpstreamID = &created.OrderID
			}
		}
		return nil
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Transient() {
		// The supplier may have accepted the order; the reconciliation
		// poller resolves it either way.
		s.logger.Warn("supplier call inconclusive, leaving order for reconciliation",
			"order_id", order.ID, "error", err)
		return nil
	}

	s.logger.Warn("supplier rejected order, refunding",
		"order_id", order.ID, "error", err)
	if _, rerr := s.RefundOrder(ctx, order.ID, domain.OrderStatusFailed, domain.RefundOptions{
		Source:        domain.RefundSourceOrderCreate,
		ExternalError: err.Error(),
	}); rerr != nil {
		s.logger.Error("refund after rejected submit failed",
			"order_id", order.ID, "error", rerr)
	}

	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case gateway.KindOutOfStock, gateway.KindInsufficientUpstream:
			return domain.ErrOutOfStock()
		case gateway.KindValidation, gateway.KindNotFound:
			return domain.ErrValidation(gwErr.Message)
		case gateway.KindConflict:
			return domain.ErrConflict(gwErr.Message)
		}
	}
	return domain.ErrInternal("submit order", err)
}

// RefundOrder is the single refund chokepoint. It atomically moves the order
// to the given terminal status and returns the held price; losers of the
// status race report a no-op instead of double-crediting.
func (s *OrderService) RefundOrder(ctx context.Context, orderID uuid.UUID, terminal domain.OrderStatus, opts domain.RefundOptions) (domain.RefundResult, error) {
	if !terminal.Terminal() || terminal == domain.OrderStatusCompleted {
		return domain.RefundResult{}, domain.ErrInternal("refund terminal status must be failed or cancelled", nil)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.RefundResult{}, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		return domain.RefundResult{}, domain.ErrInternal("load order", err)
	}
	if order == nil {
		return domain.RefundResult{Refunded: false, Reason: domain.RefundOrderNotFound}, nil
	}
	if order.Status.Terminal() {
		return domain.RefundResult{Refunded: false, Reason: skipReason(order.Status)}, nil
	}

	moved, err := s.orders.UpdateStatusIfActive(ctx, tx, orderID, terminal)
	if err != nil {
		return domain.RefundResult{}, domain.ErrInternal("update order status", err)
	}
	if !moved {
		// Lost the race inside this window.
		return domain.RefundResult{Refunded: false, Reason: domain.RefundAlreadyTerminal}, nil
	}

	order.Status = terminal
	if err := s.ledger.CreditRefund(ctx, tx, order, opts); err != nil {
		return domain.RefundResult{}, domain.ErrInternal("credit refund", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.RefundResult{}, domain.ErrInternal("commit refund", err)
	}

	s.logger.Info("order refunded",
		"order_id", orderID, "terminal", terminal, "source", opts.Source,
		"amount", domain.FormatRubles(order.Price))
	return domain.RefundResult{Refunded: true, Reason: domain.RefundOK}, nil
}

func skipReason(status domain.OrderStatus) domain.RefundReason {
	if status == domain.OrderStatusCompleted {
		return domain.RefundAlreadyCompleted
	}
	return domain.RefundAlreadyTerminal
}

// CompleteOrder marks the order delivered, keeping the held price. The
// status guard makes duplicate webhooks idempotent.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID uuid.UUID, upstreamUUID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		return domain.ErrInternal("load order", err)
	}
	if order == nil {
		return domain.ErrNotFound("order", orderID.String())
	}

	moved, err := s.orders.UpdateStatusIfActive(ctx, tx, orderID, domain.OrderStatusCompleted)
	if err != nil {
		return domain.ErrInternal("update order status", err)
	}
	if !moved {
		return nil
	}
	if upstreamUUID != "" {
		if err := s.orders.SetUpstreamID(ctx, tx, orderID, upstreamUUID); err != nil {
			return domain.ErrInternal("set upstream id", err)
		}
	}

	order.Status = domain.OrderStatusCompleted
	if err := s.outbox.Insert(ctx, tx, domain.NewOrderEvent(domain.EventOrderCompleted, order, false)); err != nil {
		return domain.ErrInternal("outbox event", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit completion", err)
	}

	s.logger.Info("order completed", "order_id", orderID, "upstream_uuid", upstreamUUID)
	return nil
}

// CancelOrder cancels an active order on the user's or an admin's request.
// The supplier is asked first; a supplier-side "not found" counts as a
// successful cancellation because nothing was ever delivered.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, requester *domain.User) (domain.RefundResult, error) {
	order, err := s.orders.FindByID(ctx, s.pool, orderID)
	if err != nil {
		return domain.RefundResult{}, domain.ErrInternal("load order", err)
	}
	if order == nil {
		return domain.RefundResult{}, domain.ErrNotFound("order", orderID.String())
	}
	if order.UserID != requester.ID && !requester.IsAdmin() {
		return domain.RefundResult{}, domain.ErrForbidden("not your order")
	}
	if order.Status.Terminal() {
		return domain.RefundResult{Refunded: false, Reason: skipReason(order.Status)}, nil
	}

	source := domain.RefundSourceUserCancel
	if requester.ID != order.UserID {
		source = domain.RefundSourceAdminCancel
	}
	opts := domain.RefundOptions{Source: source, InitiatorUserID: &requester.ID}

	info, err := s.supplier.CancelOrder(ctx, order.ID.String())
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) && gwErr.Kind == gateway.KindNotFound {
			// Supplier never saw the order: cancellation trivially succeeds.
			return s.RefundOrder(ctx, orderID, domain.CancelTerminal, opts)
		}
		return domain.RefundResult{}, domain.ErrInternal("supplier cancel", err)
	}

	switch info.Status {
	case gateway.StatusCompleted:
		// Delivered while the cancel was in flight; money stays spent.
		if err := s.CompleteOrder(ctx, orderID, info.UUID); err != nil {
			return domain.RefundResult{}, err
		}
		return domain.RefundResult{Refunded: false, Reason: domain.RefundAlreadyCompleted}, nil
	default:
		opts.ExternalStatus = string(info.Status)
		if info.Error != nil && info.Error.Message != nil {
			opts.ExternalError = *info.Error.Message
		}
		return s.RefundOrder(ctx, orderID, domain.CancelTerminal, opts)
	}
}

// ResendOrder asks the supplier to retry delivery of a stuck gamepass order,
// optionally against a different place.
func (s *OrderService) ResendOrder(ctx context.Context, orderID uuid.UUID, requester *domain.User, rawPlaceID string) error {
	order, err := s.orders.FindByID(ctx, s.pool, orderID)
	if err != nil {
		return domain.ErrInternal("load order", err)
	}
	if order == nil {
		return domain.ErrNotFound("order", orderID.String())
	}
	if order.UserID != requester.ID && !requester.IsAdmin() {
		return domain.ErrForbidden("not your order")
	}
	if order.Kind != domain.OrderKindGamepass {
		return domain.ErrValidation("only gamepass orders can be resent")
	}
	if order.Status != domain.OrderStatusProcessing {
		return domain.ErrValidation("only processing orders can be resent")
	}

	placeID := ""
	if rawPlaceID != "" {
		if placeID, err = domain.NormalizePlaceID(rawPlaceID); err != nil {
			return domain.ErrValidation(err.Error())
		}
	} else if order.PlaceID != nil {
		placeID = *order.PlaceID
	} else {
		return domain.ErrValidation("place id required")
	}

	pid, _ := strconv.ParseInt(placeID, 10, 64)
	if err := s.supplier.ResendGamepass(ctx, order.ID.String(), pid); err != nil {
		return domain.ErrInternal("supplier resend", err)
	}

	s.logger.Info("order resend requested", "order_id", orderID, "place_id", placeID)
	return nil
}

// HandleSupplierWebhook applies an authenticated supplier callback to the
// order it names. Non-terminal upstream statuses are acknowledged and
// ignored; the webhook is not the only path to resolution, just the fastest.
func (s *OrderService) HandleSupplierWebhook(ctx context.Context, wh *gateway.Webhook) error {
	order, err := s.resolveWebhookOrder(ctx, wh)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound("order", wh.OrderID)
	}
	orderID := order.ID

	switch wh.Status {
	case gateway.StatusCompleted:
		return s.CompleteOrder(ctx, orderID, wh.UUID)
	case gateway.StatusError, gateway.StatusCancelled:
		opts := domain.RefundOptions{
			Source:         domain.RefundSourceWebhook,
			ExternalStatus: string(wh.Status),
		}
		if wh.Error != nil {
			opts.ExternalError = wh.Error.Reason
			if wh.Error.Message != nil {
				opts.ExternalError = *wh.Error.Message
			}
		}
		_, err := s.RefundOrder(ctx, orderID, domain.OrderStatusFailed, opts)
		return err
	default:
		// Pending/Queued/Processing: nothing to apply yet.
		s.logger.Debug("supplier webhook ignored", "order_id", orderID, "status", wh.Status)
		return nil
	}
}

// resolveWebhookOrder matches the callback to a local order. The supplier
// names orders by our id in new callbacks and by its own id in older ones,
// so both the orderId and uuid fields are tried against both keys.
func (s *OrderService) resolveWebhookOrder(ctx context.Context, wh *gateway.Webhook) (*domain.Order, error) {
	for _, key := range []string{wh.OrderID, wh.UUID} {
		if key == "" {
			continue
		}
		if id, err := uuid.Parse(key); err == nil {
			order, err := s.orders.FindByID(ctx, s.pool, id)
			if err != nil {
				return nil, domain.ErrInternal("load order", err)
			}
			if order != nil {
				return order, nil
			}
		}
		order, err := s.orders.FindByUpstreamID(ctx, s.pool, key)
		if err != nil {
			return nil, domain.ErrInternal("load order", err)
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, s.pool, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal("list orders", err)
	}
	return orders, nil
}

// GetOrder returns one order, enforcing ownership for non-admins.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, requester *domain.User) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, s.pool, orderID)
	if err != nil {
		return nil, domain.ErrInternal("load order", err)
	}
	if order == nil {
		return nil, domain.ErrNotFound("order", orderID.String())
	}
	if order.UserID != requester.ID && !requester.IsAdmin() {
		return nil, domain.ErrForbidden("not your order")
	}
	return order, nil
}

// RefundInfo returns the audit refund record for an order, if any.
func (s *OrderService) RefundInfo(ctx context.Context, orderID uuid.UUID) (*domain.AuditRecord, error) {
	rec, err := s.audit.FindOrderRefund(ctx, s.pool, orderID)
	if err != nil {
		return nil, domain.ErrInternal("load refund record", err)
	}
	return rec, nil
}

// DeleteOrder removes a terminal order (admin housekeeping). Active orders
// must be cancelled first so the held money is accounted for.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID, admin *domain.User) error {
	order, err := s.orders.FindByID(ctx, s.pool, orderID)
	if err != nil {
		return domain.ErrInternal("load order", err)
	}
	if order == nil {
		return domain.ErrNotFound("order", orderID.String())
	}
	if !order.Status.Terminal() {
		return domain.ErrValidation("cancel the order before deleting it")
	}
	if err := s.orders.Delete(ctx, s.pool, orderID); err != nil {
		return err
	}
	return s.audit.Insert(ctx, s.pool, admin.ID, domain.AuditAdminOrderDelete, map[string]string{
		"orderId": orderID.String(),
	})
}
