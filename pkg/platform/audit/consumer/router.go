package consumer

import (
	"context"
	"log/slog"

	"firmo/internal/platform/kafka/consumer"
)

// TopicHandler consumes one audit topic's messages.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router fans messages from the shared consumer group out to the handler
// registered for their topic. Messages on an unrouted topic go to the
// fallback when one is set, and are otherwise committed so the partition
// keeps moving.
type Router struct {
	byTopic  map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger, fallback TopicHandler) *Router {
	return &Router{
		byTopic:  map[string]TopicHandler{},
		fallback: fallback,
		logger:   logger,
	}
}

// Register binds a topic to its handler. A later registration for the same
// topic replaces the earlier one.
func (r *Router) Register(topic string, h TopicHandler) {
	r.byTopic[topic] = h
}

// Handle implements the consumer's handler contract.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if h, ok := r.byTopic[msg.Topic]; ok {
		return h.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}
	r.logger.Warn("message on unrouted topic dropped",
		"topic", msg.Topic,
		"key", string(msg.Key),
	)
	return nil
}
