package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "firmo/pkg/domain"
	audit "firmo/pkg/platform/audit"
	txcontext "firmo/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the audit_outbox table and published to Kafka by the
// relay worker. Kafka is the source of truth for audit events; the
// audit_events and audit_security tables are materialized by the consumer.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by the consumer.
type outboxPayload struct {
	ID            string  `json:"ID"`
	Category      string  `json:"Category"`
	Timestamp     string  `json:"Timestamp"`
	UserID        string  `json:"UserID,omitempty"`
	Subject       string  `json:"Subject"`
	Action        string  `json:"Action"`
	ContractID    string  `json:"ContractID,omitempty"`
	SessionID     string  `json:"SessionID,omitempty"`
	Role          string  `json:"Role,omitempty"`
	Decision      string  `json:"Decision,omitempty"`
	Reason        string  `json:"Reason,omitempty"`
	Confidence    float64 `json:"Confidence,omitempty"`
	IntegrityHash string  `json:"IntegrityHash,omitempty"`
	Email         string  `json:"Email,omitempty"`
	IP            string  `json:"IP,omitempty"`
	Severity      string  `json:"Severity,omitempty"`
	RequestID     string  `json:"RequestID,omitempty"`
	ActorID       string  `json:"ActorID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
// It routes through the transaction carried in ctx, so compliance events
// commit or roll back with the domain mutation that produced them.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:            eventID.String(),
		Category:      string(category),
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		Subject:       event.Subject,
		Action:        event.Action,
		ContractID:    event.ContractID,
		SessionID:     event.SessionID,
		Role:          event.Role,
		Decision:      event.Decision,
		Reason:        event.Reason,
		Confidence:    event.Confidence,
		IntegrityHash: event.IntegrityHash,
		Email:         event.Email,
		IP:            event.IP,
		Severity:      event.Severity,
		RequestID:     event.RequestID,
		ActorID:       event.ActorID,
	}
	if !event.UserID.IsNil() {
		payload.UserID = uuid.UUID(event.UserID).String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Determine aggregate type and ID
	aggregateType := "audit"
	aggregateID := eventID.String()
	switch {
	case event.ContractID != "":
		aggregateType = "contract"
		aggregateID = event.ContractID
	case !event.UserID.IsNil():
		aggregateType = "user"
		aggregateID = uuid.UUID(event.UserID).String()
	}

	query := `
		INSERT INTO audit_outbox (id, event_id, category, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), // outbox entry ID
		eventID,
		string(category),
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ReadPending returns up to limit unpublished outbox entries, oldest first.
func (s *Store) ReadPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, event_id, category, event_type, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var (
			entry    audit.OutboxEntry
			category string
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &category, &entry.Action, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entry.Category = audit.EventCategory(category)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an outbox entry as delivered. Re-marking a published
// entry is a no-op, so the relay can safely retry after partial failures.
func (s *Store) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = $2 AND published_at IS NULL`
	_, err := s.db.ExecContext(ctx, query, time.Now(), entryID)
	if err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Consumer-side materialization
// -----------------------------------------------------------------------------

// AppendCompliance inserts a compliance event into the durable audit_events
// table. Idempotent via ON CONFLICT DO NOTHING, so Kafka redelivery after a
// consumer crash produces no duplicates.
func (s *Store) AppendCompliance(ctx context.Context, eventID uuid.UUID, event audit.ComplianceEvent) error {
	query := `
		INSERT INTO audit_events (
			id, timestamp, user_id, contract_id, session_id, role,
			subject, action, decision, confidence, integrity_hash,
			email, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		event.Timestamp,
		uuid.UUID(event.UserID),
		event.ContractID,
		event.SessionID,
		event.Role,
		event.Subject,
		event.Action,
		event.Decision,
		event.Confidence,
		event.IntegrityHash,
		event.Email,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert compliance event: %w", err)
	}
	return nil
}

// AppendSecurity inserts a security event into the audit_security table.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendSecurity(ctx context.Context, eventID uuid.UUID, event audit.SecurityEvent) error {
	query := `
		INSERT INTO audit_security (
			id, timestamp, subject, action, reason,
			ip, request_id, actor_id, severity
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		event.Timestamp,
		event.Subject,
		event.Action,
		event.Reason,
		event.IP,
		event.RequestID,
		event.ActorID,
		string(event.Severity),
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Queries over the materialized compliance trail
// -----------------------------------------------------------------------------

// ListByUser returns compliance events for a specific party.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT timestamp, user_id, contract_id, session_id, role,
			   subject, action, decision, confidence, integrity_hash,
			   email, request_id, actor_id
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent compliance events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT timestamp, user_id, contract_id, session_id, role,
			   subject, action, decision, confidence, integrity_hash,
			   email, request_id, actor_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event  audit.Event
			userID uuid.UUID
		)

		err := rows.Scan(
			&event.Timestamp,
			&userID,
			&event.ContractID,
			&event.SessionID,
			&event.Role,
			&event.Subject,
			&event.Action,
			&event.Decision,
			&event.Confidence,
			&event.IntegrityHash,
			&event.Email,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.CategoryCompliance
		event.UserID = id.UserID(userID)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
