package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"firmo/internal/platform/kafka/consumer"

	"github.com/google/uuid"
)

// OpsHandler processes operational audit events from Kafka. Ops events are
// already sampled at the producer side; the sink just turns them into
// structured log lines with short retention, no table.
type OpsHandler struct {
	logger *slog.Logger
}

// NewOpsHandler creates an ops event handler.
func NewOpsHandler(logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		logger: logger,
	}
}

// opsPayload matches the JSON structure for ops events.
type opsPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	RequestID string `json:"RequestID"`
}

// Handle processes an operational audit event.
func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		// Ops events are best-effort - log and continue
		h.logger.Debug("failed to parse ops event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload opsPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Debug("failed to unmarshal ops payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	occurred := time.Now()
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			occurred = ts
		}
	}

	h.logger.InfoContext(ctx, "ops audit event",
		"event_id", eventID,
		"action", payload.Action,
		"subject", payload.Subject,
		"occurred_at", occurred,
		"request_id", payload.RequestID,
	)

	return nil
}
