package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/infra"
	"github.com/robumart/platform/internal/repository"
)

// The outbox consumer has two halves: the poller drains event_outbox into
// Kafka, and the reader consumes completed-order events back to flip the
// notified flag once the event is durably published. A shop running without
// Kafka only needs the API and the poller binaries.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
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
	logger.Info("outbox-consumer connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	poller := infra.NewOutboxPoller(pool, producer, logger)
	poller.Start(ctx)

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, string(domain.EventOrderCompleted),
		"shop-notifier", cfg.KafkaEnabled, logger)
	defer consumer.Close()

	if !consumer.Enabled() {
		logger.Info("kafka disabled, outbox events stay queued in postgres")
		<-ctx.Done()
		return nil
	}

	orders := repository.NewOrderRepository()

	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("outbox-consumer shutting down")
				return nil
			}
			logger.Error("kafka read", "error", err)
			continue
		}

		var envelope struct {
			AggregateID string `json:"aggregate_id"`
		}
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			logger.Warn("malformed event envelope", "error", err)
			continue
		}
		orderID, err := uuid.Parse(envelope.AggregateID)
		if err != nil {
			logger.Warn("event with non-uuid aggregate id", "aggregate_id", envelope.AggregateID)
			continue
		}

		if err := orders.MarkNotified(ctx, pool, orderID); err != nil {
			logger.Error("mark order notified", "order_id", orderID, "error", err)
		}
	}
}
