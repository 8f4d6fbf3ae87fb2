// Package config reads process configuration from environment variables so
// main stays lean. Every dependency that can be absent in development (Redis,
// Kafka, S3, Postgres) is optional: an empty URL means the in-process
// fallback is wired instead.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// IntegrityKey signs verification session integrity hashes.
	IntegrityKey string

	PostgresURL string

	Redis     RedisConfig
	Kafka     KafkaConfig
	Blob      BlobConfig
	RateLimit RateLimitConfig

	// AnalyzerURL points at the biometric analyzer service. Empty means the
	// deterministic in-process mock analyzers are used.
	AnalyzerURL string

	// NotifierWebhookURL receives notification payloads. Empty means
	// notifications are logged only.
	NotifierWebhookURL string
}

// RedisConfig carries connection settings for the optional Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries broker addresses and the audit topic names.
type KafkaConfig struct {
	Brokers         []string
	ComplianceTopic string
	SecurityTopic   string
	OperationsTopic string
	ConsumerGroup   string
}

// Enabled reports whether Kafka publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RateLimitConfig bounds per-caller request rates on the verification routes.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether rate limiting is configured. Zero requests turns
// it off.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0
}

// BlobConfig carries S3 settings for captured-media storage.
type BlobConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// Enabled reports whether S3 blob storage is configured.
func (b BlobConfig) Enabled() bool {
	return b.Bucket != ""
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          getenv("FIRMO_ADDR", ":8080"),
		JWTSigningKey: getenv("FIRMO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     getenv("FIRMO_JWT_ISSUER", "firmo"),
		JWTAudience:   getenv("FIRMO_JWT_AUDIENCE", "firmo-api"),
		IntegrityKey:  getenv("FIRMO_INTEGRITY_KEY", "dev-integrity-key-change-in-production"),
		PostgresURL:   os.Getenv("FIRMO_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("FIRMO_REDIS_URL"),
			PoolSize:     getenvInt("FIRMO_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("FIRMO_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("FIRMO_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("FIRMO_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("FIRMO_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(os.Getenv("FIRMO_KAFKA_BROKERS")),
			ComplianceTopic: getenv("FIRMO_KAFKA_COMPLIANCE_TOPIC", "firmo.audit.compliance"),
			SecurityTopic:   getenv("FIRMO_KAFKA_SECURITY_TOPIC", "firmo.audit.security"),
			OperationsTopic: getenv("FIRMO_KAFKA_OPERATIONS_TOPIC", "firmo.audit.operations"),
			ConsumerGroup:   getenv("FIRMO_KAFKA_CONSUMER_GROUP", "firmo-auditsink"),
		},
		Blob: BlobConfig{
			Bucket:   os.Getenv("FIRMO_S3_BUCKET"),
			Region:   getenv("FIRMO_S3_REGION", "eu-west-1"),
			Endpoint: os.Getenv("FIRMO_S3_ENDPOINT"),
			Prefix:   getenv("FIRMO_S3_PREFIX", "captures/"),
		},
		RateLimit: RateLimitConfig{
			Requests: getenvInt("FIRMO_RATELIMIT_REQUESTS", 60),
			Window:   getenvDuration("FIRMO_RATELIMIT_WINDOW", time.Minute),
		},
		AnalyzerURL:        os.Getenv("FIRMO_ANALYZER_URL"),
		NotifierWebhookURL: os.Getenv("FIRMO_NOTIFIER_WEBHOOK_URL"),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
