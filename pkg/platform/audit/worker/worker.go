// Package worker relays audit events from the transactional outbox to Kafka.
//
// Publishers write events to the audit_outbox table inside the domain
// transaction; the relay polls for unpublished rows and produces them to the
// per-category topic. Delivery is at-least-once: a produce that succeeds but
// fails to be marked is re-sent on the next pass, and the consumers
// deduplicate on the event ID.
package worker

import (
	"context"
	"log/slog"
	"time"

	audit "firmo/pkg/platform/audit"

	"github.com/google/uuid"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// OutboxSource reads and settles pending outbox rows.
type OutboxSource interface {
	ReadPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, entryID uuid.UUID) error
}

// Producer publishes one record and waits for broker acknowledgment.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Topics names the destination topic per event category.
type Topics struct {
	Compliance string
	Security   string
	Operations string
}

// For returns the topic for a category. Unknown categories route to the
// operations topic, mirroring the category default on the event side.
func (t Topics) For(category audit.EventCategory) string {
	switch category {
	case audit.CategoryCompliance:
		return t.Compliance
	case audit.CategorySecurity:
		return t.Security
	default:
		return t.Operations
	}
}

// Relay moves pending outbox entries to Kafka on a fixed cadence.
type Relay struct {
	source   OutboxSource
	producer Producer
	topics   Topics
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval sets the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize bounds how many entries one pass reads.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewRelay creates an outbox relay.
func NewRelay(source OutboxSource, producer Producer, topics Topics, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		topics:    topics,
		logger:    logger,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is canceled. Publish failures are logged and
// retried on the next pass; they never stop the relay.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain relays pending entries until the outbox is empty or an error makes
// further progress pointless for this pass.
func (r *Relay) drain(ctx context.Context) {
	for {
		entries, err := r.source.ReadPending(ctx, r.batchSize)
		if err != nil {
			r.logger.Error("audit outbox read failed", "error", err)
			return
		}
		if len(entries) == 0 {
			return
		}

		for _, entry := range entries {
			if err := r.publish(ctx, entry); err != nil {
				// Leave the entry pending; the next pass retries it.
				// Stopping here keeps per-contract ordering intact.
				r.logger.Error("audit outbox publish failed",
					"entry_id", entry.ID,
					"event_id", entry.EventID,
					"action", entry.Action,
					"error", err,
				)
				return
			}
		}

		if len(entries) < r.batchSize {
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, entry audit.OutboxEntry) error {
	topic := r.topics.For(entry.Category)

	if err := r.producer.Produce(ctx, topic, []byte(entry.EventID.String()), entry.Payload); err != nil {
		return err
	}

	if err := r.source.MarkPublished(ctx, entry.ID); err != nil {
		// The event reached Kafka but stays pending locally, so it will be
		// produced again. Consumers dedupe on the event ID.
		return err
	}

	r.logger.Debug("audit event relayed",
		"topic", topic,
		"event_id", entry.EventID,
		"action", entry.Action,
	)
	return nil
}
