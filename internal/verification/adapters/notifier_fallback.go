package adapters

import (
	"context"
	"log/slog"

	"firmo/internal/verification/ports"
	"firmo/pkg/platform/circuit"
	"firmo/pkg/requestcontext"
)

// FallbackNotifier delivers through the primary notifier and degrades to the
// fallback once the primary keeps failing. Every send still probes the
// primary; the breaker decides whether a failure surfaces as an error or is
// absorbed by the fallback (typically the log notifier).
type FallbackNotifier struct {
	primary  ports.Notifier
	fallback ports.Notifier
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackNotifier(primary, fallback ports.Notifier, logger *slog.Logger) *FallbackNotifier {
	return &FallbackNotifier{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("notifier"),
		logger:   logger,
	}
}

func (n *FallbackNotifier) Send(ctx context.Context, recipient, template string, payload map[string]any) error {
	err := n.primary.Send(ctx, recipient, template, payload)
	if err == nil {
		if _, change := n.breaker.RecordSuccess(); change.Closed {
			n.logger.InfoContext(ctx, "notifier circuit closed",
				"request_id", requestcontext.RequestID(ctx),
				"breaker", n.breaker.Name(),
			)
		}
		return nil
	}

	useFallback, change := n.breaker.RecordFailure()
	if change.Opened {
		n.logger.WarnContext(ctx, "notifier circuit opened",
			"request_id", requestcontext.RequestID(ctx),
			"breaker", n.breaker.Name(),
			"error", err,
		)
	}
	if useFallback {
		return n.fallback.Send(ctx, recipient, template, payload)
	}
	return err
}
