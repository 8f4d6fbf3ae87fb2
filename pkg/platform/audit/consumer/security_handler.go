package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"firmo/internal/platform/kafka/consumer"
	audit "firmo/pkg/platform/audit"

	"github.com/google/uuid"
)

// SecurityHandler processes security audit events from Kafka.
// Events are written to the audit_security table and emitted as structured
// log lines at a severity-mapped level so the SIEM pipeline can pick them up.
type SecurityHandler struct {
	store  SecurityStore
	logger *slog.Logger
}

// SecurityStore defines the storage interface for security events.
type SecurityStore interface {
	AppendSecurity(ctx context.Context, eventID uuid.UUID, event audit.SecurityEvent) error
}

// NewSecurityHandler creates a security event handler.
func NewSecurityHandler(store SecurityStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		store:  store,
		logger: logger,
	}
}

// securityPayload matches the JSON structure for security events.
type securityPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason"`
	IP        string `json:"IP"`
	RequestID string `json:"RequestID"`
	ActorID   string `json:"ActorID"`
	Severity  string `json:"Severity"`
}

// Handle processes a security audit event.
func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Warn("failed to parse security event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload securityPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("failed to unmarshal security payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	event := audit.SecurityEvent{
		Subject:   payload.Subject,
		Action:    payload.Action,
		Reason:    payload.Reason,
		IP:        payload.IP,
		RequestID: payload.RequestID,
		ActorID:   payload.ActorID,
		Severity:  audit.Severity(payload.Severity),
	}

	// Default severity if not set
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
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

	// Store security event
	if err := h.store.AppendSecurity(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store security event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store security event: %w", err)
	}

	// Structured log line is the SIEM feed; level follows event severity.
	h.logger.Log(ctx, severityLevel(event.Severity), "security audit event",
		"event_id", eventID,
		"action", event.Action,
		"subject", event.Subject,
		"reason", event.Reason,
		"ip", event.IP,
		"severity", event.Severity,
		"request_id", event.RequestID,
	)

	return nil
}

func severityLevel(s audit.Severity) slog.Level {
	switch s {
	case audit.SeverityCritical:
		return slog.LevelError
	case audit.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
