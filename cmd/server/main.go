package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firmo/internal/contract"
	"firmo/internal/invitation"
	jwttoken "firmo/internal/jwt_token"
	"firmo/internal/platform/config"
	"firmo/internal/platform/httpserver"
	"firmo/internal/platform/kafka"
	"firmo/internal/platform/logger"
	platmetrics "firmo/internal/platform/metrics"
	"firmo/internal/platform/postgres"
	"firmo/internal/platform/ratelimit"
	platredis "firmo/internal/platform/redis"
	"firmo/internal/progression"
	progressionmetrics "firmo/internal/progression/metrics"
	httptransport "firmo/internal/transport/http"
	"firmo/internal/verification"
	"firmo/internal/verification/adapters"
	verificationhandler "firmo/internal/verification/handler"
	verificationmetrics "firmo/internal/verification/metrics"
	"firmo/internal/verification/ports"
	"firmo/internal/workflow"
	id "firmo/pkg/domain"
	audit "firmo/pkg/platform/audit"
	"firmo/pkg/platform/audit/publishers/compliance"
	"firmo/pkg/platform/audit/publishers/ops"
	"firmo/pkg/platform/audit/publishers/security"
	auditmemory "firmo/pkg/platform/audit/store/memory"
	auditpostgres "firmo/pkg/platform/audit/store/postgres"
	"firmo/pkg/platform/audit/worker"
)

// main assembles the process: stores (Postgres or in-memory), the analyzer
// and blob adapters, audit publishers with the outbox relay, the invitation
// and verification services, and the HTTP server. Every optional dependency
// degrades to an in-process fallback so a bare `go run` serves requests.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sessions  verification.Store
		contracts contract.Store
		workflows workflow.Store
		invites   invitation.Store
		auditSink audit.Store
		atomic    verification.Atomic
		outbox    *auditpostgres.Store
		db        *sql.DB
		seeded    *contract.Contract
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		sessions = verification.NewPostgresStore(db)
		contracts = contract.NewPostgresStore(db)
		workflows = workflow.NewPostgresStore(db)
		invites = invitation.NewPostgresStore(db)
		outbox = auditpostgres.New(db)
		auditSink = outbox
		atomic = newPostgresAtomic(db)
		log.Info("stores: postgres")
	} else {
		memContracts := contract.NewInMemoryStore()
		seeded = contract.SeedDevContract(memContracts)
		sessions = verification.NewInMemoryStore()
		contracts = memContracts
		workflows = workflow.NewInMemoryStore()
		invites = invitation.NewInMemoryStore()
		auditSink = auditmemory.NewInMemoryStore()
		atomic = verification.NewMemoryAtomic()
		log.Warn("stores: in-memory (FIRMO_POSTGRES_URL not set), state is lost on restart")
	}

	redisClient, err := platredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	compliancePub := compliance.New(auditSink,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	securityPub := security.New(auditSink,
		security.WithLogger(log),
		security.WithMetrics(security.NewMetrics()),
	)
	defer securityPub.Close()
	opsTracker := ops.NewTracker(auditSink,
		ops.WithLogger(log),
		ops.WithMetrics(ops.NewMetrics()),
	)
	defer opsTracker.Close()

	if outbox != nil && cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers,
			cfg.Kafka.ComplianceTopic, cfg.Kafka.SecurityTopic, cfg.Kafka.OperationsTopic); err != nil {
			return fmt.Errorf("ensure audit topics: %w", err)
		}
		relay := worker.NewRelay(outbox, producer, worker.Topics{
			Compliance: cfg.Kafka.ComplianceTopic,
			Security:   cfg.Kafka.SecurityTopic,
			Operations: cfg.Kafka.OperationsTopic,
		}, log)
		go func() { _ = relay.Run(ctx) }()
		log.Info("audit outbox relay started", "brokers", cfg.Kafka.Brokers)
	}

	var analyzers verification.Analyzers
	if cfg.AnalyzerURL != "" {
		az := adapters.NewHTTPAnalyzer(cfg.AnalyzerURL, &http.Client{Timeout: 30 * time.Second})
		analyzers = verification.Analyzers{Face: az, Document: az, Combined: az, Voice: az}
		log.Info("analyzer: http", "url", cfg.AnalyzerURL)
	} else {
		az := adapters.NewMockAnalyzer()
		analyzers = verification.Analyzers{Face: az, Document: az, Combined: az, Voice: az}
		log.Warn("analyzer: in-process mock (FIRMO_ANALYZER_URL not set)")
	}

	var blobs ports.BlobStore
	if cfg.Blob.Enabled() {
		s3Store, err := adapters.NewS3BlobStore(ctx, adapters.S3BlobStoreConfig{
			Bucket:   cfg.Blob.Bucket,
			Region:   cfg.Blob.Region,
			Endpoint: cfg.Blob.Endpoint,
			Prefix:   cfg.Blob.Prefix,
		})
		if err != nil {
			return fmt.Errorf("s3 blob store: %w", err)
		}
		blobs = s3Store
		log.Info("blob store: s3", "bucket", cfg.Blob.Bucket)
	} else {
		blobs = adapters.NewMemoryBlobStore()
		log.Info("blob store: in-memory")
	}

	slogNotifier := adapters.NewSlogNotifier(log)
	var notifier ports.Notifier = slogNotifier
	if cfg.NotifierWebhookURL != "" {
		webhook := adapters.NewWebhookNotifier(cfg.NotifierWebhookURL, &http.Client{Timeout: 10 * time.Second})
		notifier = adapters.NewFallbackNotifier(webhook, slogNotifier, log)
		log.Info("notifier: webhook with log fallback")
	}

	invitationOpts := []invitation.Option{
		invitation.WithNotifier(notifier),
		invitation.WithCompliancePublisher(compliancePub),
		invitation.WithSecurityPublisher(securityPub),
		invitation.WithOpsTracker(opsTracker),
		invitation.WithLogger(log),
	}
	if redisClient != nil {
		invitationOpts = append(invitationOpts,
			invitation.WithActiveIndex(invitation.NewRedisActiveIndex(redisClient.Client)))
	}
	invitationSvc := invitation.NewService(invites, invitationOpts...)

	coordinator := progression.New(contracts, workflows, log, progressionmetrics.New())
	verificationSvc := verification.NewService(
		sessions, contracts, workflows, blobs, analyzers,
		coordinator, atomic, []byte(cfg.IntegrityKey),
		verification.WithLogger(log),
		verification.WithMetrics(verificationmetrics.New()),
		verification.WithNotifier(notifier),
		verification.WithInvitations(adapters.NewInvitationAdapter(invitationSvc)),
		verification.WithCompliancePublisher(compliancePub),
		verification.WithSecurityPublisher(securityPub),
		verification.WithOpsTracker(opsTracker),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	if seeded != nil {
		logDevTokens(log, jwtService, seeded)
	}

	var handlerOpts []verificationhandler.Option
	if cfg.RateLimit.Enabled() {
		handlerOpts = append(handlerOpts, verificationhandler.WithRateLimit(
			ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)))
		log.Info("rate limit", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window)
	}
	handler := verificationhandler.New(verificationSvc, log, platmetrics.New(), jwttoken.NewJWTServiceAdapter(jwtService), handlerOpts...)

	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	srv := httpserver.New(cfg.Addr, httptransport.New(checks, handler))

	errCh := make(chan error, 1)
	go func() {
		log.Info("firmo listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// logDevTokens prints a ready-to-use bearer token per seeded party, so the
// in-memory setup is exercisable with curl alone.
func logDevTokens(log *slog.Logger, jwtService *jwttoken.JWTService, seeded *contract.Contract) {
	parties := []struct {
		role string
		user id.UserID
	}{
		{"tenant", seeded.TenantID},
		{"guarantor", seeded.GuarantorID},
		{"landlord", seeded.LandlordID},
	}
	for _, p := range parties {
		token, err := jwtService.GenerateAccessToken(p.user, 24*time.Hour)
		if err != nil {
			log.Warn("dev token generation failed", "role", p.role, "error", err)
			continue
		}
		log.Info("dev token",
			"role", p.role,
			"contract_id", seeded.ID,
			"token", token,
		)
	}
}
