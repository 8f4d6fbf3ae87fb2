// Package consumer wraps franz-go group consumption behind a small handler
// interface. Offsets are committed only after the handler accepts a message,
// so a crashed sink resumes from the first unprocessed event.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the unit handed to handlers. Key carries the event ID,
// Value the JSON payload.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes a single message. Returning nil commits the offset;
// returning an error stops the consumer so the message is redelivered
// after restart.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config holds the consumer group settings.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

// Consumer reads from the configured topics and dispatches to a handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer group client. Auto-commit is disabled: offsets
// advance only for messages the handler accepted.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if cfg.Group == "" {
		return nil, errors.New("kafka consumer group required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka topics required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer client: %w", err)
	}

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run polls until the context is canceled or the handler reports a failure.
// On handler failure the offsets of already-accepted messages are committed
// and the error is returned; the caller decides whether to restart.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var accepted []*kgo.Record
		var handleErr error

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			msg := &Message{
				Topic: record.Topic,
				Key:   record.Key,
				Value: record.Value,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				handleErr = fmt.Errorf("handle message on %s: %w", record.Topic, err)
				break
			}
			accepted = append(accepted, record)
		}

		if len(accepted) > 0 {
			if err := c.client.CommitRecords(ctx, accepted...); err != nil {
				c.logger.Error("kafka commit failed", "error", err)
			}
		}
		if handleErr != nil {
			return handleErr
		}
	}
}

// Close releases the underlying client. Pending offsets are not committed.
func (c *Consumer) Close() {
	c.client.Close()
}
