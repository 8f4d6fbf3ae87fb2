package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"firmo/internal/platform/kafka/consumer"
	id "firmo/pkg/domain"
	audit "firmo/pkg/platform/audit"

	"github.com/google/uuid"
)

// ComplianceHandler processes compliance audit events from Kafka.
// Events are written to the audit_events table for long-term retention.
type ComplianceHandler struct {
	store  ComplianceStore
	logger *slog.Logger
}

// ComplianceStore defines the storage interface for compliance events.
type ComplianceStore interface {
	AppendCompliance(ctx context.Context, eventID uuid.UUID, event audit.ComplianceEvent) error
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store ComplianceStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// compliancePayload matches the JSON structure for compliance events.
type compliancePayload struct {
	Timestamp     string  `json:"Timestamp"`
	UserID        string  `json:"UserID"`
	ContractID    string  `json:"ContractID"`
	SessionID     string  `json:"SessionID"`
	Role          string  `json:"Role"`
	Subject       string  `json:"Subject"`
	Action        string  `json:"Action"`
	Decision      string  `json:"Decision"`
	Confidence    float64 `json:"Confidence"`
	IntegrityHash string  `json:"IntegrityHash"`
	Email         string  `json:"Email"`
	RequestID     string  `json:"RequestID"`
	ActorID       string  `json:"ActorID"`
}

// Handle processes a compliance audit event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: failed to parse compliance event ID",
			"key", string(msg.Key),
			"error", err,
		)
		// Return nil to commit - malformed messages should not block
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: failed to unmarshal compliance payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	// Strict validation for compliance events
	if payload.UserID == "" {
		h.logger.Error("CRITICAL: compliance event missing UserID",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}
	if payload.ContractID == "" {
		h.logger.Error("CRITICAL: compliance event missing ContractID",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	event := audit.ComplianceEvent{
		ContractID:    payload.ContractID,
		SessionID:     payload.SessionID,
		Role:          payload.Role,
		Subject:       payload.Subject,
		Action:        payload.Action,
		Decision:      payload.Decision,
		Confidence:    payload.Confidence,
		IntegrityHash: payload.IntegrityHash,
		Email:         payload.Email,
		RequestID:     payload.RequestID,
		ActorID:       payload.ActorID,
	}

	// Parse timestamp
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		} else {
			event.Timestamp = time.Now()
		}
	} else {
		event.Timestamp = time.Now()
	}

	// Parse UserID
	if uid, err := uuid.Parse(payload.UserID); err == nil {
		event.UserID = id.UserID(uid)
	}

	// Store compliance event
	if err := h.store.AppendCompliance(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store compliance event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"event_id", eventID,
		"action", event.Action,
		"contract_id", event.ContractID,
	)

	return nil
}
