package adapters

import (
	"context"
	"log/slog"

	"firmo/pkg/requestcontext"
)

// SlogNotifier writes notifications to the structured log instead of
// delivering them. Default for dev and tests; the log line carries enough to
// replay the send by hand.
type SlogNotifier struct {
	logger *slog.Logger
}

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger}
}

func (n *SlogNotifier) Send(ctx context.Context, recipient, template string, payload map[string]any) error {
	n.logger.InfoContext(ctx, "notification",
		"request_id", requestcontext.RequestID(ctx),
		"recipient", recipient,
		"template", template,
		"payload", payload,
	)
	return nil
}
