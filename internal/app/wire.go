package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/robumart/platform/internal/auth"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/guard"
	"github.com/robumart/platform/internal/handler"
	adminhandler "github.com/robumart/platform/internal/handler/admin"
	"github.com/robumart/platform/internal/infra"
	"github.com/robumart/platform/internal/ledger"
	"github.com/robumart/platform/internal/pricing"
	"github.com/robumart/platform/internal/provider"
	"github.com/robumart/platform/internal/repository"
	"github.com/robumart/platform/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Config *infra.Config
	JWTMgr *auth.JWTManager
	Logger *slog.Logger
}

// Services is the assembled service layer, shared between the HTTP router
// and the background poller.
type Services struct {
	Orders    *service.OrderService
	Payments  *service.PaymentService
	Users     *service.UserService
	Reconcile *service.ReconcileService
	Pricing   *pricing.Oracle
	Crypto    *provider.CryptoPayProvider
	PayLink   *provider.PayLinkProvider
}

// BuildServices wires repositories, providers and services together.
func BuildServices(deps RouterDeps) *Services {
	pool := deps.Pool
	cfg := deps.Config
	logger := deps.Logger

	// Repositories
	userRepo := repository.NewUserRepository()
	orderRepo := repository.NewOrderRepository()
	paymentRepo := repository.NewPaymentRepository()
	auditRepo := repository.NewAuditRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Ledger engine
	ledgerEngine := ledger.New(userRepo, auditRepo, outboxRepo, logger)

	// External providers
	supplier := gateway.NewClient(cfg.SupplierBaseURL, cfg.SupplierAPIKey, logger)
	cryptopay := provider.NewCryptoPayProvider(cfg.CryptoPayBaseURL, cfg.CryptoPayToken, cfg.CryptoPayAssets, logger)
	paylink := provider.NewPayLinkProvider(cfg.PayLinkBaseURL, cfg.PayLinkToken, cfg.PayLinkShopID, logger)
	exchange := provider.NewExchangeProvider(cfg.ExchangeBaseURL, cfg.ExchangeAPIKey, cfg.ExchangeAPISecret, logger)

	settings := infra.NewEnvSettingsSource(cfg)
	oracle := pricing.NewOracle(supplier, cryptopay, settings, deps.Redis, logger)

	// Services
	orderSvc := service.NewOrderService(pool, orderRepo, userRepo, auditRepo, outboxRepo,
		ledgerEngine, supplier, oracle, settings, logger)
	paymentSvc := service.NewPaymentService(pool, paymentRepo, userRepo, ledgerEngine,
		cryptopay, paylink, settings, logger)
	userSvc := service.NewUserService(pool, userRepo, logger)
	reconcileSvc := service.NewReconcileService(pool, orderRepo, paymentRepo, userRepo,
		ledgerEngine, orderSvc, supplier, exchange, oracle, settings, logger)

	return &Services{
		Orders:    orderSvc,
		Payments:  paymentSvc,
		Users:     userSvc,
		Reconcile: reconcileSvc,
		Pricing:   oracle,
		Crypto:    cryptopay,
		PayLink:   paylink,
	}
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps, svcs *Services) chi.Router {
	cfg := deps.Config
	jwtMgr := deps.JWTMgr
	logger := deps.Logger

	// Handlers
	authHandler := handler.NewAuthHandler(svcs.Users, jwtMgr, cfg.TelegramBotToken, logger)
	orderHandler := handler.NewOrderHandler(svcs.Orders, svcs.Users)
	walletHandler := handler.NewWalletHandler(svcs.Payments, svcs.Users, svcs.Pricing)
	userHandler := handler.NewUserHandler(svcs.Users, svcs.Payments)
	webhookHandler := handler.NewWebhookHandler(svcs.Orders, svcs.Payments, cfg.SupplierAPIKey,
		svcs.Crypto, svcs.PayLink, logger)
	cronHandler := handler.NewCronHandler(svcs.Reconcile, logger)

	// Admin handlers
	orderAdmin := adminhandler.NewOrderAdminHandler(svcs.Orders, svcs.Users)
	exchangeAdmin := adminhandler.NewExchangeAdminHandler(svcs.Reconcile)

	// Per-user limiters on the routes that fan out to external providers.
	orderLimiter := guard.NewRateLimiter(10, time.Minute)
	topupLimiter := guard.NewRateLimiter(5, time.Minute)
	statusLimiter := guard.NewRateLimiter(30, time.Minute)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.Pool))

	// Webhooks (no auth — raw body required for signature verification)
	r.Post("/webhooks/supplier", webhookHandler.HandleSupplier)
	r.Post("/webhooks/cryptopay", webhookHandler.HandleCryptoPay)
	r.Post("/webhooks/paylink", webhookHandler.HandlePayLink)

	// Auth routes (no auth)
	r.Post("/auth/telegram", authHandler.TelegramLogin)

	// Cron hooks (static bearer secret)
	r.Route("/cron", func(r chi.Router) {
		r.Use(handler.CronAuth(cfg.CronSecret))
		r.Post("/check-orders", cronHandler.CheckOrders)
		r.Post("/cleanup-payments", cronHandler.CleanupPayments)
		r.Post("/sync-exchange", cronHandler.SyncExchange)
	})

	// User-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateUser(jwtMgr))

		r.Get("/me", userHandler.GetMe)
		r.Put("/me/exchange-uid", userHandler.LinkExchangeUID)

		r.Route("/orders", func(r chi.Router) {
			r.With(handler.RateLimit(orderLimiter)).Post("/", orderHandler.Create)
			r.Get("/my", orderHandler.ListMy)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/cancel", orderHandler.Cancel)
			r.Post("/{id}/resend", orderHandler.Resend)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/rate", walletHandler.Rate)
			r.With(handler.RateLimit(topupLimiter)).Post("/topup", walletHandler.TopUpCrypto)
			r.With(handler.RateLimit(topupLimiter)).Post("/bill", walletHandler.TopUpPayLink)
			r.With(handler.RateLimit(statusLimiter)).Get("/status/{id}", walletHandler.CheckPayment)
			r.Get("/payments/{id}", walletHandler.GetPayment)
			r.Get("/history", walletHandler.History)
		})

		r.Route("/referrals", func(r chi.Router) {
			r.Get("/", userHandler.Referrals)
			r.Post("/transfer", userHandler.TransferReferral)
		})
	})

	// Admin-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(jwtMgr))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/orders/{id}/cancel", orderAdmin.Cancel)
			r.Post("/orders/{id}/refund", orderAdmin.ForceRefund)
			r.Get("/orders/{id}/refund-info", orderAdmin.RefundInfo)
			r.Delete("/orders/{id}", orderAdmin.Delete)
			r.Post("/exchange/sync", exchangeAdmin.Sync)
		})
	})

	return r
}
