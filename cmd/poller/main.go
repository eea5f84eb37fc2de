package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/robumart/platform/internal/app"
	"github.com/robumart/platform/internal/infra"
)

// The poller is the reconciliation loop: it resolves stuck orders against
// the supplier, expires abandoned top-ups, and pulls in exchange deposits.
// It can run alongside external cron hitting the /cron endpoints; every job
// is idempotent.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("poller failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("poller connected to postgres")

	rdb, err := infra.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	svcs := app.BuildServices(app.RouterDeps{
		Pool:   pool,
		Redis:  rdb,
		Config: cfg,
		Logger: logger,
	})

	orderInterval := durationEnv("POLL_ORDERS_INTERVAL", time.Minute)
	paymentInterval := durationEnv("POLL_PAYMENTS_INTERVAL", 10*time.Minute)
	exchangeInterval := durationEnv("POLL_EXCHANGE_INTERVAL", 5*time.Minute)

	logger.Info("poller starting",
		"orders_interval", orderInterval,
		"payments_interval", paymentInterval,
		"exchange_interval", exchangeInterval,
	)

	orderTicker := time.NewTicker(orderInterval)
	defer orderTicker.Stop()
	paymentTicker := time.NewTicker(paymentInterval)
	defer paymentTicker.Stop()
	exchangeTicker := time.NewTicker(exchangeInterval)
	defer exchangeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("poller shutting down")
			return nil
		case <-orderTicker.C:
			if report, err := svcs.Reconcile.ScanStaleOrders(ctx); err != nil {
				logger.Error("scan stale orders", "error", err)
			} else if report.Checked > 0 {
				logger.Info("stale order scan",
					"checked", report.Checked,
					"completed", report.Completed,
					"refunded", report.Refunded,
					"waiting", report.Waiting,
					"errors", report.Errors,
				)
			}
		case <-paymentTicker.C:
			if expired, err := svcs.Reconcile.ExpireStalePayments(ctx); err != nil {
				logger.Error("expire stale payments", "error", err)
			} else if expired > 0 {
				logger.Info("expired stale payments", "count", expired)
			}
		case <-exchangeTicker.C:
			if report, err := svcs.Reconcile.SyncExchangeDeposits(ctx); err != nil {
				logger.Error("sync exchange deposits", "error", err)
			} else if report.Seen > 0 {
				logger.Info("exchange deposit sync",
					"seen", report.Seen,
					"matched", report.Matched,
					"credited", report.Credited,
				)
			}
		}
	}
}

func durationEnv(name string, def time.Duration) time.Duration {
	if s := os.Getenv(name); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}
