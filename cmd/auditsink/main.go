package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"firmo/internal/platform/config"
	kafkaconsumer "firmo/internal/platform/kafka/consumer"
	"firmo/internal/platform/logger"
	"firmo/internal/platform/postgres"
	auditconsumer "firmo/pkg/platform/audit/consumer"
	auditpostgres "firmo/pkg/platform/audit/store/postgres"
)

// main runs the audit sink: it consumes the three audit topics the outbox
// relay publishes to and persists compliance and security events to Postgres
// for long-term retention. Ops events are logged only.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("auditsink exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Kafka.Enabled() {
		return errors.New("FIRMO_KAFKA_BROKERS is required")
	}
	if cfg.PostgresURL == "" {
		return errors.New("FIRMO_POSTGRES_URL is required")
	}

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := auditpostgres.New(db)

	router := auditconsumer.NewRouter(log, nil)
	router.Register(cfg.Kafka.ComplianceTopic, auditconsumer.NewComplianceHandler(store, log))
	router.Register(cfg.Kafka.SecurityTopic, auditconsumer.NewSecurityHandler(store, log))
	router.Register(cfg.Kafka.OperationsTopic, auditconsumer.NewOpsHandler(log))

	c, err := kafkaconsumer.New(kafkaconsumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Group:   cfg.Kafka.ConsumerGroup,
		Topics:  []string{cfg.Kafka.ComplianceTopic, cfg.Kafka.SecurityTopic, cfg.Kafka.OperationsTopic},
	}, router, log)
	if err != nil {
		return err
	}
	defer c.Close()

	log.Info("auditsink consuming",
		"brokers", cfg.Kafka.Brokers,
		"group", cfg.Kafka.ConsumerGroup,
	)
	return c.Run(ctx)
}
