package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/ledger"
	"github.com/robumart/platform/internal/provider"
	"github.com/robumart/platform/internal/repository"
)

// Reconciliation tuning. Batches are small to respect supplier rate limits.
const (
	DefaultStaleAfter    = 10 * time.Minute
	DefaultNotFoundGrace = 15 * time.Minute
	DefaultBatchSize     = 20
	DefaultPaymentTTL    = 24 * time.Hour
	DefaultSyncWindow    = 24 * time.Hour
)

// DepositReader is the slice of the exchange client the sync needs.
type DepositReader interface {
	ListInternalDeposits(ctx context.Context, startTime int64, maxPages int) ([]provider.InternalDeposit, error)
}

// FiatRater converts USDT amounts to rubles.
type FiatRater interface {
	UsdtToRub(ctx context.Context) (float64, error)
}

// ReconcileService is the safety net: it resolves orders whose webhook never
// arrived, expires abandoned payments, and pulls in exchange deposits that
// have no webhook channel at all.
type ReconcileService struct {
	pool     *pgxpool.Pool
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	users    repository.UserRepository
	ledger   *ledger.Ledger
	orderSvc *OrderService
	supplier SupplierGateway
	exchange DepositReader
	rater    FiatRater
	settings domain.SettingsSource
	logger   *slog.Logger

	StaleAfter    time.Duration
	NotFoundGrace time.Duration
	BatchSize     int
	PaymentTTL    time.Duration
	SyncWindow    time.Duration
}

// NewReconcileService creates a ReconcileService with default tuning.
func NewReconcileService(
	pool *pgxpool.Pool,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	ldg *ledger.Ledger,
	orderSvc *OrderService,
	supplier SupplierGateway,
	exchange DepositReader,
	rater FiatRater,
	settings domain.SettingsSource,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		pool:     pool,
		orders:   orders,
		payments: payments,
		users:    users,
		ledger:   ldg,
		orderSvc: orderSvc,
		supplier: supplier,
		exchange: exchange,
		rater:    rater,
		settings: settings,
		logger:   logger,

		StaleAfter:    DefaultStaleAfter,
		NotFoundGrace: DefaultNotFoundGrace,
		BatchSize:     DefaultBatchSize,
		PaymentTTL:    DefaultPaymentTTL,
		SyncWindow:    DefaultSyncWindow,
	}
}

// Action is what the poller should do with an order given the supplier's
// reported status.
type Action int

const (
	ActionWait Action = iota
	ActionComplete
	ActionRefund
)

// ResolveUpstream maps the supplier status vocabulary to a poller action.
// Every in-flight status waits; only the supplier's terminal statuses move
// an order.
func ResolveUpstream(status gateway.UpstreamStatus) Action {
	switch status {
	case gateway.StatusCompleted:
		return ActionComplete
	case gateway.StatusError, gateway.StatusCancelled:
		return ActionRefund
	default:
		return ActionWait
	}
}

// ScanReport summarizes one reconciliation pass.
type ScanReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Refunded  int `json:"refunded"`
	Waiting   int `json:"waiting"`
	Errors    int `json:"errors"`
}

// ScanStaleOrders claims a batch of processing orders that haven't moved
// within the staleness window and resolves each against the supplier's
// authoritative status.
func (s *ReconcileService) ScanStaleOrders(ctx context.Context) (*ScanReport, error) {
	batch, err := s.orders.ClaimStaleProcessing(ctx, s.pool, s.StaleAfter, s.BatchSize)
	if err != nil {
		return nil, domain.ErrInternal("claim stale orders", err)
	}

	report := &ScanReport{Checked: len(batch)}
	for i := range batch {
		order := &batch[i]

		info, err := s.supplier.GetOrderInfo(ctx, order.ID.String())
		if err != nil {
			var gwErr *gateway.Error
			if errors.As(err, &gwErr) && gwErr.Kind == gateway.KindNotFound {
				s.handleMissingUpstream(ctx, order, report)
				continue
			}
			s.logger.Warn("order status check failed", "order_id", order.ID, "error", err)
			report.Errors++
			continue
		}

		switch ResolveUpstream(info.Status) {
		case ActionComplete:
			if err := s.orderSvc.CompleteOrder(ctx, order.ID, info.UUID); err != nil {
				s.logger.Error("reconcile complete failed", "order_id", order.ID, "error", err)
				report.Errors++
				continue
			}
			report.Completed++
		case ActionRefund:
			opts := domain.RefundOptions{
				Source:         domain.RefundSourceSystem,
				ExternalStatus: string(info.Status),
			}
			if info.Error != nil && info.Error.Message != nil {
				opts.ExternalError = *info.Error.Message
			}
			res, err := s.orderSvc.RefundOrder(ctx, order.ID, domain.OrderStatusFailed, opts)
			if err != nil {
				s.logger.Error("reconcile refund failed", "order_id", order.ID, "error", err)
				report.Errors++
				continue
			}
			if res.Refunded {
				report.Refunded++
			}
		default:
			report.Waiting++
		}
	}

	s.logger.Info("stale order scan done",
		"checked", report.Checked, "completed", report.Completed,
		"refunded", report.Refunded, "waiting", report.Waiting, "errors", report.Errors)
	return report, nil
}

// handleMissingUpstream deals with orders the supplier claims not to know.
// Young orders get a grace period: creation is asynchronous upstream and a
// submit may still be in flight.
func (s *ReconcileService) handleMissingUpstream(ctx context.Context, order *domain.Order, report *ScanReport) {
	if time.Since(order.CreatedAt) < s.NotFoundGrace {
		s.logger.Info("order unknown upstream, within grace period", "order_id", order.ID)
		report.Waiting++
		return
	}

	res, err := s.orderSvc.RefundOrder(ctx, order.ID, domain.OrderStatusFailed, domain.RefundOptions{
		Source:         domain.RefundSourceSystem,
		ExternalStatus: "not_found",
		ExternalError:  "order never registered with the supplier",
	})
	if err != nil {
		s.logger.Error("abandoned order refund failed", "order_id", order.ID, "error", err)
		report.Errors++
		return
	}
	if res.Refunded {
		report.Refunded++
	}
}

// ExpireStalePayments moves pending payments older than the TTL to expired.
// The pending→paid gate means a webhook racing this sweep cannot credit an
// expired payment.
func (s *ReconcileService) ExpireStalePayments(ctx context.Context) (int64, error) {
	n, err := s.payments.ExpirePendingOlderThan(ctx, s.pool, time.Now().Add(-s.PaymentTTL))
	if err != nil {
		return 0, domain.ErrInternal("expire payments", err)
	}
	if n > 0 {
		s.logger.Info("expired stale payments", "count", n)
	}
	return n, nil
}

// SyncReport summarizes one exchange deposit sync.
type SyncReport struct {
	Seen     int `json:"seen"`
	Matched  int `json:"matched"`
	Credited int `json:"credited"`
}

// SyncExchangeDeposits pulls recent internal transfers from the exchange and
// credits the ones sent by linked users. The payment id is the provider
// transaction id, so re-scanning an overlapping window is harmless.
func (s *ReconcileService) SyncExchangeDeposits(ctx context.Context) (*SyncReport, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, domain.ErrInternal("load settings", err)
	}

	since := time.Now().Add(-s.SyncWindow).UnixMilli()
	deposits, err := s.exchange.ListInternalDeposits(ctx, since, 5)
	if err != nil {
		return nil, domain.ErrInternal("list deposits", err)
	}

	report := &SyncReport{Seen: len(deposits)}
	if len(deposits) == 0 {
		return report, nil
	}

	usdToRub, err := s.rater.UsdtToRub(ctx)
	if err != nil {
		return nil, domain.ErrInternal("usdt rate", err)
	}

	for i := range deposits {
		d := &deposits[i]
		if !d.Succeeded() || d.Coin != "USDT" || d.TxID == "" {
			continue
		}

		user, err := s.users.FindByExchangeUID(ctx, s.pool, d.Address)
		if err != nil {
			s.logger.Warn("deposit user lookup failed", "tx_id", d.TxID, "error", err)
			continue
		}
		if user == nil {
			continue
		}
		report.Matched++

		if err := s.creditDeposit(ctx, user, d, usdToRub, settings); err != nil {
			s.logger.Error("deposit credit failed", "tx_id", d.TxID, "user_id", user.ID, "error", err)
			continue
		}
		report.Credited++
	}

	s.logger.Info("exchange deposit sync done",
		"seen", report.Seen, "matched", report.Matched, "credited", report.Credited)
	return report, nil
}

// creditDeposit inserts the already-paid payment and credits it atomically.
// The ON CONFLICT insert is the idempotency gate; losing it means the
// deposit was credited by an earlier sync.
func (s *ReconcileService) creditDeposit(ctx context.Context, user *domain.User, d *provider.InternalDeposit, usdToRub float64, settings domain.Settings) error {
	usd, err := parseAmount(d.Amount)
	if err != nil {
		return err
	}

	data, _ := json.Marshal(domain.ExchangeDepositData{
		TxID:      d.TxID,
		FromUID:   d.Address,
		Coin:      d.Coin,
		AmountUSD: d.Amount,
	})
	payment := &domain.Payment{
		ID:           d.TxID,
		UserID:       user.ID,
		Amount:       domain.Kopecks(usd * usdToRub),
		Currency:     "RUB",
		Method:       domain.MethodExchangeUID,
		Status:       domain.PaymentStatusPaid,
		ProviderData: data,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	inserted, err := s.payments.InsertPaidIfAbsent(ctx, tx, payment)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	if err := s.ledger.CreditPayment(ctx, tx, payment, settings); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func parseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad deposit amount %q: %w", raw, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive deposit amount %q", raw)
	}
	return v, nil
}
